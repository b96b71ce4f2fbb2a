package token

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestLookup(t *testing.T) {
	info, ok := Lookup(USDHType)
	if !ok {
		t.Fatal("USDH should be registered")
	}
	if info.Symbol != "USDH" || info.Decimals != 6 {
		t.Fatalf("USDH metadata got=%+v", info)
	}

	if _, ok := Lookup("0x1::fake::FAKE"); ok {
		t.Fatal("unknown coin type should not resolve")
	}
}

func TestLookupBySymbol(t *testing.T) {
	info, ok := LookupBySymbol("btc")
	if !ok || info.CoinType != BTCType {
		t.Fatalf("case-insensitive symbol lookup failed: %+v ok=%v", info, ok)
	}
}

func TestToBaseUnits(t *testing.T) {
	cases := []struct {
		in       string
		decimals int32
		want     uint64
	}{
		{"1", 9, 1_000_000_000},
		{"0.5", 6, 500_000},
		{"1.2345678", 6, 1_234_567}, // 多余精度直接截断
		{"0", 9, 0},
		{"-3", 9, 0},
		{"0.0000001", 6, 0}, // 不足一个最小单位
	}
	for _, tc := range cases {
		amount := decimal.RequireFromString(tc.in)
		if got := ToBaseUnits(amount, tc.decimals); got != tc.want {
			t.Fatalf("ToBaseUnits(%s, %d) got=%d want=%d", tc.in, tc.decimals, got, tc.want)
		}
	}
}

func TestToBaseUnitsSaturates(t *testing.T) {
	huge := decimal.RequireFromString("99999999999999999999")
	if got := ToBaseUnits(huge, 9); got != ^uint64(0) {
		t.Fatalf("overflow should saturate at max uint64, got %d", got)
	}
}

func TestFromBaseUnits(t *testing.T) {
	got := FromBaseUnits(1_234_567, 6)
	if !got.Equal(decimal.RequireFromString("1.234567")) {
		t.Fatalf("FromBaseUnits got=%s", got)
	}
}

func TestAllCoversRegistry(t *testing.T) {
	all := All()
	if len(all) != 3 {
		t.Fatalf("registry size got=%d want=3", len(all))
	}
	for _, info := range all {
		if _, ok := Lookup(info.CoinType); !ok {
			t.Fatalf("All returned unregistered token %s", info.CoinType)
		}
	}
}
