package txbuilder

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/chain"
)

// Position direction encoding used by the on-chain entry points.
const (
	DirectionLong  byte = 0
	DirectionShort byte = 1
)

var (
	// ErrInsufficientFunds is returned when the sender has no coins of the
	// collateral type. Raised before any merge/split is attempted.
	ErrInsufficientFunds = errors.New("insufficient funds: no coins of the collateral type")

	// ErrInvalidMarketConfig is returned when the selected trading pair is
	// missing an on-chain reference (market, price feed or coin type).
	ErrInvalidMarketConfig = errors.New("invalid market config")
)

// MarketRefs carries the on-chain references of one trading pair. The
// values come from the backend market catalogue, with package/pool/clock
// defaults from config.
type MarketRefs struct {
	PackageID string

	MarketID             string
	MarketInitialVersion uint64

	LiquidityPoolID    string
	PoolInitialVersion uint64

	PriceFeedID             string
	PriceFeedInitialVersion uint64

	// CoinTradeType is the collateral coin type tag, used both to select
	// the payment coins and as the entry point's type argument.
	CoinTradeType string

	// ClockID is the system clock shared object (0x6), created at
	// version 1.
	ClockID string
}

func (m MarketRefs) validate() error {
	switch {
	case strings.TrimSpace(m.MarketID) == "":
		return errors.Wrap(ErrInvalidMarketConfig, "missing market object id")
	case strings.TrimSpace(m.PriceFeedID) == "":
		return errors.Wrap(ErrInvalidMarketConfig, "missing price feed object id")
	case strings.TrimSpace(m.CoinTradeType) == "":
		return errors.Wrap(ErrInvalidMarketConfig, "missing coin trade type")
	case strings.TrimSpace(m.PackageID) == "":
		return errors.Wrap(ErrInvalidMarketConfig, "missing package id")
	case strings.TrimSpace(m.LiquidityPoolID) == "":
		return errors.Wrap(ErrInvalidMarketConfig, "missing liquidity pool object id")
	case strings.TrimSpace(m.ClockID) == "":
		return errors.Wrap(ErrInvalidMarketConfig, "missing clock object id")
	}
	return nil
}

// Collateral computes the escrowed amount in base units: size/leverage with
// integer division. size < leverage yields 0.
func Collateral(size, leverage uint64) uint64 {
	if leverage == 0 {
		return 0
	}
	return size / leverage
}

// OpenPositionParams are the inputs to BuildOpenPosition.
type OpenPositionParams struct {
	Sender    string
	Direction byte   // DirectionLong or DirectionShort
	Size      uint64 // position size in the collateral token's base units
	Leverage  uint64
	Coins     []chain.Coin // sender's coins of Market.CoinTradeType
	Market    MarketRefs
}

// BuildOpenPosition assembles the open-position transaction:
//
//  1. With two or more coins, merge everything but the largest into the
//     largest. Merging the smaller coins into the biggest one leaves the
//     least dust after the split below.
//  2. Split collateral = size/leverage off the merged coin; the split
//     result is the payment, the remainder stays with the sender.
//  3. Call <package>::market::open_position with the market, pool, payment,
//     price feed, size, direction and the system clock.
//
// Gas is not attached here; the sponsorship layer sets it before Build().
func BuildOpenPosition(p OpenPositionParams) (*Builder, error) {
	if err := p.Market.validate(); err != nil {
		return nil, err
	}
	if p.Leverage == 0 {
		return nil, errors.New("leverage must be >= 1")
	}
	if len(p.Coins) == 0 {
		return nil, ErrInsufficientFunds
	}

	type coinWithBalance struct {
		coin    chain.Coin
		balance uint64
	}
	coins := make([]coinWithBalance, 0, len(p.Coins))
	for _, c := range p.Coins {
		bal, err := c.BalanceUint64()
		if err != nil {
			return nil, err
		}
		coins = append(coins, coinWithBalance{coin: c, balance: bal})
	}
	sort.SliceStable(coins, func(i, j int) bool {
		return coins[i].balance > coins[j].balance
	})

	b := New(p.Sender)

	largestRef, err := coins[0].coin.Ref()
	if err != nil {
		return nil, err
	}
	paymentCoin := b.OwnedObject(largestRef)

	if len(coins) >= 2 {
		sources := make([]Argument, 0, len(coins)-1)
		for _, c := range coins[1:] {
			ref, err := c.coin.Ref()
			if err != nil {
				return nil, err
			}
			sources = append(sources, b.OwnedObject(ref))
		}
		b.MergeCoins(paymentCoin, sources)
	}

	collateral := Collateral(p.Size, p.Leverage)
	amount := b.PureU64(collateral)
	payment := b.SplitCoins(paymentCoin, []Argument{amount})

	market := b.SharedObject(p.Market.MarketID, p.Market.MarketInitialVersion, true)
	pool := b.SharedObject(p.Market.LiquidityPoolID, p.Market.PoolInitialVersion, true)
	priceFeed := b.SharedObject(p.Market.PriceFeedID, p.Market.PriceFeedInitialVersion, false)
	size := b.PureU64(p.Size)
	direction := b.PureU8(p.Direction)
	clock := b.SharedObject(p.Market.ClockID, 1, false)

	target := p.Market.PackageID + "::market::open_position"
	if _, err := b.MoveCall(target, []string{p.Market.CoinTradeType},
		market, pool, payment, priceFeed, size, direction, clock); err != nil {
		return nil, err
	}
	return b, nil
}

// ClosePositionParams are the inputs to BuildClosePosition.
type ClosePositionParams struct {
	Sender      string
	PositionRef chain.ObjectRef // the owned position object being closed
	Market      MarketRefs
}

// BuildClosePosition assembles the close-position transaction. The payout
// coin is returned to the sender by the entry point itself.
func BuildClosePosition(p ClosePositionParams) (*Builder, error) {
	if err := p.Market.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.PositionRef.ObjectID) == "" {
		return nil, errors.New("missing position object ref")
	}

	b := New(p.Sender)

	market := b.SharedObject(p.Market.MarketID, p.Market.MarketInitialVersion, true)
	pool := b.SharedObject(p.Market.LiquidityPoolID, p.Market.PoolInitialVersion, true)
	position := b.OwnedObject(p.PositionRef)
	priceFeed := b.SharedObject(p.Market.PriceFeedID, p.Market.PriceFeedInitialVersion, false)
	clock := b.SharedObject(p.Market.ClockID, 1, false)

	target := p.Market.PackageID + "::market::close_position"
	if _, err := b.MoveCall(target, []string{p.Market.CoinTradeType},
		market, pool, position, priceFeed, clock); err != nil {
		return nil, err
	}
	return b, nil
}
