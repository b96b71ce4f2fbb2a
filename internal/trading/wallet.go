package trading

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/chain"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/keypair"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/sponsor"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/token"
)

// Wallet is the signing identity plus balance lookup for the trading flow.
// The sponsor layer only sees the sponsor.Signer subset; balances are a
// service concern.
type Wallet interface {
	sponsor.Signer
	Balances(ctx context.Context) (map[string]decimal.Decimal, error)
}

// LocalWallet is a wallet backed by an in-process keypair, reporting
// balances for every token in the registry.
type LocalWallet struct {
	kp    *keypair.Keypair
	chain *chain.Client
}

// NewLocalWallet wraps a keypair and a fullnode client into a Wallet.
func NewLocalWallet(kp *keypair.Keypair, chainClient *chain.Client) *LocalWallet {
	return &LocalWallet{kp: kp, chain: chainClient}
}

func (w *LocalWallet) Address() string { return w.kp.Address() }

func (w *LocalWallet) SignTransactionBytes(txBytes []byte) (string, error) {
	return w.kp.SignTransactionBytes(txBytes)
}

// Balances returns the wallet's aggregate balance per registered token,
// keyed by symbol and converted out of base units.
func (w *LocalWallet) Balances(ctx context.Context) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(token.All()))
	for _, info := range token.All() {
		bal, err := w.chain.GetBalance(ctx, w.kp.Address(), info.CoinType)
		if err != nil {
			return nil, errors.Wrapf(err, "balance of %s", info.Symbol)
		}
		total, err := decimal.NewFromString(bal.TotalBalance)
		if err != nil {
			return nil, errors.Wrapf(err, "balance of %s: bad total %q", info.Symbol, bal.TotalBalance)
		}
		out[info.Symbol] = total.Shift(-info.Decimals)
	}
	return out, nil
}
