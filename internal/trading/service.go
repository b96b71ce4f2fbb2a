// Package trading wires the SDK layers into the two user-facing flows:
// open a position and close a position. It resolves market metadata from
// the backend catalogue, selects the user's collateral coins, builds the
// transaction and runs it through the sponsorship coordinator with
// progress notifications and the ledger side record.
package trading

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/Tumo-Markets/Tumo-MVP/pkg/cache"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/config"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/backend"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/chain"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/notify"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/sponsor"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/token"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/txbuilder"
)

// Position sides as the backend spells them.
const (
	SideLong  = "long"
	SideShort = "short"
)

// marketTTL bounds how long catalogue metadata is reused before the
// backend is asked again. On-chain ids never change for a live market,
// so a long TTL is safe.
const marketTTL = 5 * time.Minute

// Service runs the trading flows against one backend, one fullnode and
// one sponsorship coordinator.
type Service struct {
	chain     *chain.Client
	backend   *backend.Client
	coord     *sponsor.Coordinator
	notifier  *notify.Notifier
	contracts config.ContractsConfig

	markets *cache.InMemoryCache[string, txbuilder.MarketRefs]
}

// NewService assembles a trading service. onStatus may be nil.
func NewService(chainClient *chain.Client, backendClient *backend.Client, coord *sponsor.Coordinator, contracts config.ContractsConfig, onStatus notify.StatusFunc) *Service {
	return &Service{
		chain:     chainClient,
		backend:   backendClient,
		coord:     coord,
		notifier:  notify.New(backendClient, onStatus),
		contracts: contracts,
		markets:   cache.NewInMemoryCache[string, txbuilder.MarketRefs](marketTTL),
	}
}

// Close releases the service's background resources.
func (s *Service) Close() { s.markets.Stop() }

// OpenRequest is one open-position order as entered by the user. Size is
// in the collateral token's display units.
type OpenRequest struct {
	MarketID string
	Side     string // SideLong or SideShort
	Size     decimal.Decimal
	Leverage uint64
}

// OpenPosition runs the full open flow: resolve the market's on-chain
// refs, pick the user's collateral coins, build, sponsor-sign, submit and
// post the ledger record.
func (s *Service) OpenPosition(ctx context.Context, wallet Wallet, req OpenRequest) (*sponsor.Result, error) {
	direction, err := directionOf(req.Side)
	if err != nil {
		return nil, err
	}

	refs, err := s.MarketRefs(ctx, req.MarketID)
	if err != nil {
		return nil, err
	}

	decimals := token.DefaultDecimals
	if info, ok := token.Lookup(refs.CoinTradeType); ok {
		decimals = info.Decimals
	}
	sizeBase := token.ToBaseUnits(req.Size, decimals)
	if sizeBase == 0 {
		return nil, errors.Errorf("position size %s is below one base unit", req.Size)
	}

	record := backend.PositionRecord{
		MarketID:    req.MarketID,
		UserAddress: wallet.Address(),
		Side:        req.Side,
		Size:        req.Size.String(),
		Leverage:    fmt.Sprintf("%d", req.Leverage),
	}

	op := func(ctx context.Context) (*sponsor.Result, error) {
		return s.coord.Execute(ctx, wallet, func() (*txbuilder.Builder, error) {
			coins, err := s.chain.GetCoins(ctx, wallet.Address(), refs.CoinTradeType)
			if err != nil {
				return nil, err
			}
			return txbuilder.BuildOpenPosition(txbuilder.OpenPositionParams{
				Sender:    wallet.Address(),
				Direction: direction,
				Size:      sizeBase,
				Leverage:  req.Leverage,
				Coins:     coins,
				Market:    refs,
			})
		})
	}
	return s.notifier.Execute(ctx, op, notify.RecordOpen, record)
}

// CloseRequest identifies the position object being closed.
type CloseRequest struct {
	MarketID   string
	PositionID string
	Side       string
	Size       string
}

// ClosePosition runs the close flow for one owned position object.
func (s *Service) ClosePosition(ctx context.Context, wallet Wallet, req CloseRequest) (*sponsor.Result, error) {
	refs, err := s.MarketRefs(ctx, req.MarketID)
	if err != nil {
		return nil, err
	}

	record := backend.PositionRecord{
		MarketID:    req.MarketID,
		UserAddress: wallet.Address(),
		Side:        req.Side,
		Size:        req.Size,
	}

	op := func(ctx context.Context) (*sponsor.Result, error) {
		return s.coord.Execute(ctx, wallet, func() (*txbuilder.Builder, error) {
			posRef, err := s.chain.GetObjectRef(ctx, req.PositionID)
			if err != nil {
				return nil, errors.Wrap(err, "resolve position object")
			}
			return txbuilder.BuildClosePosition(txbuilder.ClosePositionParams{
				Sender:      wallet.Address(),
				PositionRef: posRef,
				Market:      refs,
			})
		})
	}
	return s.notifier.Execute(ctx, op, notify.RecordClose, record)
}

// Preview proxies the backend projection for the given order inputs.
func (s *Service) Preview(ctx context.Context, req OpenRequest) (*backend.PreviewData, error) {
	return s.backend.PreviewPosition(ctx, backend.PreviewRequest{
		Leverage:  fmt.Sprintf("%d", req.Leverage),
		MarketID:  req.MarketID,
		Side:      req.Side,
		Size:      req.Size.String(),
		TokenType: "collateral_token",
	})
}

// MarketRefs resolves the on-chain references of one market, combining the
// backend catalogue entry with configured package/pool/clock ids and the
// shared objects' initial versions from the fullnode. Results are cached.
func (s *Service) MarketRefs(ctx context.Context, marketID string) (txbuilder.MarketRefs, error) {
	if refs, ok := s.markets.Get(marketID); ok {
		return refs, nil
	}

	m, err := s.backend.GetMarket(ctx, marketID)
	if err != nil {
		return txbuilder.MarketRefs{}, err
	}
	if strings.TrimSpace(m.MarketCoinTradeID) == "" || strings.TrimSpace(m.PriceFeedCoinTradeID) == "" || strings.TrimSpace(m.CoinTradeType) == "" {
		return txbuilder.MarketRefs{}, errors.Wrapf(txbuilder.ErrInvalidMarketConfig,
			"market %s catalogue entry is missing on-chain references", marketID)
	}

	refs := txbuilder.MarketRefs{
		PackageID:       s.contracts.PackageID,
		MarketID:        m.MarketCoinTradeID,
		LiquidityPoolID: s.contracts.LiquidityPoolID,
		PriceFeedID:     m.PriceFeedCoinTradeID,
		CoinTradeType:   m.CoinTradeType,
		ClockID:         s.contracts.ClockID,
	}

	if refs.MarketInitialVersion, err = s.chain.InitialSharedVersion(ctx, refs.MarketID); err != nil {
		return txbuilder.MarketRefs{}, errors.Wrap(err, "market shared version")
	}
	if refs.PoolInitialVersion, err = s.chain.InitialSharedVersion(ctx, refs.LiquidityPoolID); err != nil {
		return txbuilder.MarketRefs{}, errors.Wrap(err, "liquidity pool shared version")
	}
	if refs.PriceFeedInitialVersion, err = s.chain.InitialSharedVersion(ctx, refs.PriceFeedID); err != nil {
		return txbuilder.MarketRefs{}, errors.Wrap(err, "price feed shared version")
	}

	s.markets.Set(marketID, refs, 0)
	return refs, nil
}

func directionOf(side string) (byte, error) {
	switch strings.ToLower(strings.TrimSpace(side)) {
	case SideLong:
		return txbuilder.DirectionLong, nil
	case SideShort:
		return txbuilder.DirectionShort, nil
	default:
		return 0, errors.Errorf("unknown side %q (expected long or short)", side)
	}
}
