// Package token holds the static registry of coin types traded on the
// exchange and their display metadata.
package token

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Known coin type tags.
const (
	OCTType  = "0x0000000000000000000000000000000000000000000000000000000000000002::oct::OCT"
	USDHType = "0xdd0d096ded419429ca4cbe948aa01cedfc842eb151eb6a73af0398406a8cfb07::usdh::USDH"
	BTCType  = "0x81c52254ccd626b128aab686c70a43fe0c50423ea10ee5b3921e10e198fbcbf9::btc::BTC"
)

// Info describes one coin type.
type Info struct {
	CoinType string
	Symbol   string
	Name     string
	Decimals int32
}

// DefaultDecimals is used when a coin type is not in the registry and the
// caller chooses to proceed anyway.
const DefaultDecimals int32 = 9

var registry = map[string]Info{
	OCTType:  {CoinType: OCTType, Symbol: "OCT", Name: "OneChain Token", Decimals: 9},
	USDHType: {CoinType: USDHType, Symbol: "USDH", Name: "USDH Stablecoin", Decimals: 6},
	BTCType:  {CoinType: BTCType, Symbol: "BTC", Name: "Wrapped Bitcoin", Decimals: 8},
}

var bySymbol = func() map[string]Info {
	m := make(map[string]Info, len(registry))
	for _, info := range registry {
		m[strings.ToUpper(info.Symbol)] = info
	}
	return m
}()

// Lookup returns metadata for a coin type tag. The second return is false
// when the type is unknown; callers decide between DefaultDecimals and
// rejecting the flow.
func Lookup(coinType string) (Info, bool) {
	info, ok := registry[strings.TrimSpace(coinType)]
	return info, ok
}

// All returns every registered token, in no particular order.
func All() []Info {
	out := make([]Info, 0, len(registry))
	for _, info := range registry {
		out = append(out, info)
	}
	return out
}

// LookupBySymbol returns metadata by display symbol (case-insensitive).
func LookupBySymbol(symbol string) (Info, bool) {
	info, ok := bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	return info, ok
}

// ToBaseUnits converts a display amount into the token's smallest integer
// unit: floor(amount * 10^decimals). The fractional remainder is dropped, so
// the conversion does not round-trip for amounts with more precision than
// the token carries.
func ToBaseUnits(amount decimal.Decimal, decimals int32) uint64 {
	scaled := amount.Shift(decimals).Floor()
	if scaled.Sign() <= 0 {
		return 0
	}
	// Amounts beyond uint64 cannot be represented on-chain; saturate.
	if !scaled.BigInt().IsUint64() {
		return ^uint64(0)
	}
	return scaled.BigInt().Uint64()
}

// FromBaseUnits converts a base-unit amount back to a display decimal.
func FromBaseUnits(amount uint64, decimals int32) decimal.Decimal {
	return decimal.NewFromUint64(amount).Shift(-decimals)
}
