package txbuilder

import (
	"bytes"
	"fmt"
	"testing"
	"testing/quick"

	"github.com/pkg/errors"

	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/chain"
)

func testMarket() MarketRefs {
	return MarketRefs{
		PackageID:               "0x" + repeatHex("aa"),
		MarketID:                "0x" + repeatHex("bb"),
		MarketInitialVersion:    10,
		LiquidityPoolID:         "0x" + repeatHex("cc"),
		PoolInitialVersion:      11,
		PriceFeedID:             "0x" + repeatHex("dd"),
		PriceFeedInitialVersion: 12,
		CoinTradeType:           "0x" + repeatHex("ee") + "::btc::BTC",
		ClockID:                 "0x6",
	}
}

func repeatHex(b string) string {
	out := ""
	for i := 0; i < 32; i++ {
		out += b
	}
	return out
}

func testDigest(seed byte) string {
	var raw [32]byte
	for i := range raw {
		raw[i] = seed + byte(i)
	}
	return base58Encode(raw[:])
}

func testCoin(id byte, balance uint64) chain.Coin {
	return chain.Coin{
		CoinType:     "0x" + repeatHex("ee") + "::btc::BTC",
		CoinObjectID: fmt.Sprintf("0x%02x", id),
		Version:      "5",
		Digest:       testDigest(id),
		Balance:      fmt.Sprintf("%d", balance),
	}
}

func TestCollateral(t *testing.T) {
	cases := []struct {
		size, leverage, want uint64
	}{
		{100, 10, 10},
		{7, 2, 3}, // 向下取整
		{5, 10, 0},
		{0, 3, 0},
		{42, 0, 0},
	}
	for _, tc := range cases {
		if got := Collateral(tc.size, tc.leverage); got != tc.want {
			t.Fatalf("Collateral(%d, %d) got=%d want=%d", tc.size, tc.leverage, got, tc.want)
		}
	}
}

func TestBuildOpenPositionEmptyCoins(t *testing.T) {
	_, err := BuildOpenPosition(OpenPositionParams{
		Sender:   "0x1",
		Size:     100,
		Leverage: 10,
		Market:   testMarket(),
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestBuildOpenPositionInvalidMarket(t *testing.T) {
	m := testMarket()
	m.PriceFeedID = ""
	_, err := BuildOpenPosition(OpenPositionParams{
		Sender:   "0x1",
		Size:     100,
		Leverage: 10,
		Coins:    []chain.Coin{testCoin(1, 500)},
		Market:   m,
	})
	if !errors.Is(err, ErrInvalidMarketConfig) {
		t.Fatalf("expected ErrInvalidMarketConfig, got %v", err)
	}
}

func TestBuildOpenPositionZeroLeverage(t *testing.T) {
	_, err := BuildOpenPosition(OpenPositionParams{
		Sender:   "0x1",
		Size:     100,
		Leverage: 0,
		Coins:    []chain.Coin{testCoin(1, 500)},
		Market:   testMarket(),
	})
	if err == nil {
		t.Fatal("expected error for zero leverage")
	}
}

// 单币开仓：不需要合并，命令序列为 split、move call
func TestBuildOpenPositionSingleCoin(t *testing.T) {
	b, err := BuildOpenPosition(OpenPositionParams{
		Sender:    "0x1",
		Direction: DirectionLong,
		Size:      100,
		Leverage:  10,
		Coins:     []chain.Coin{testCoin(1, 500)},
		Market:    testMarket(),
	})
	if err != nil {
		t.Fatalf("BuildOpenPosition error: %v", err)
	}
	kinds := commandKinds(b)
	want := []commandKind{cmdSplitCoins, cmdMoveCall}
	if !equalKinds(kinds, want) {
		t.Fatalf("command kinds got=%v want=%v", kinds, want)
	}
}

// 多币开仓：一次合并，把除最大币外的所有币并入最大币
func TestBuildOpenPositionMergeThenSplit(t *testing.T) {
	coins := []chain.Coin{testCoin(1, 100), testCoin(2, 900), testCoin(3, 50)}
	b, err := BuildOpenPosition(OpenPositionParams{
		Sender:    "0x1",
		Direction: DirectionShort,
		Size:      100,
		Leverage:  10,
		Coins:     coins,
		Market:    testMarket(),
	})
	if err != nil {
		t.Fatalf("BuildOpenPosition error: %v", err)
	}
	kinds := commandKinds(b)
	want := []commandKind{cmdMergeCoins, cmdSplitCoins, cmdMoveCall}
	if !equalKinds(kinds, want) {
		t.Fatalf("command kinds got=%v want=%v", kinds, want)
	}

	merge := b.commands[0]
	if len(merge.mergeSources) != len(coins)-1 {
		t.Fatalf("merge sources got=%d want=%d", len(merge.mergeSources), len(coins)-1)
	}
	// 合并目标是余额最大的币（0x02），它作为第一个对象输入
	dest := b.inputs[merge.mergeDest.index]
	if dest.owned.ObjectID != "0x02" {
		t.Fatalf("merge dest got=%s want=0x02", dest.owned.ObjectID)
	}

	// split 的数量参数是 collateral = 100/10 = 10
	split := b.commands[1]
	amount := b.inputs[split.splitAmounts[0].index]
	if !bytes.Equal(amount.pure, encodePureU64(10)) {
		t.Fatalf("split amount got=%x want=%x", amount.pure, encodePureU64(10))
	}
}

// 任意数量的币：最多一次合并命令，合并源为 n-1 个
func TestOpenPositionSingleMergeProperty(t *testing.T) {
	property := func(balances []uint16) bool {
		if len(balances) == 0 || len(balances) > 16 {
			return true
		}
		coins := make([]chain.Coin, 0, len(balances))
		for i, bal := range balances {
			coins = append(coins, testCoin(byte(i+1), uint64(bal)+1))
		}
		b, err := BuildOpenPosition(OpenPositionParams{
			Sender:    "0x1",
			Direction: DirectionLong,
			Size:      1000,
			Leverage:  5,
			Coins:     coins,
			Market:    testMarket(),
		})
		if err != nil {
			return false
		}
		merges := 0
		for _, cmd := range b.commands {
			if cmd.kind == cmdMergeCoins {
				merges++
				if len(cmd.mergeSources) != len(coins)-1 {
					return false
				}
			}
		}
		if len(coins) == 1 {
			return merges == 0
		}
		return merges == 1
	}
	if err := quick.Check(property, nil); err != nil {
		t.Fatal(err)
	}
}

func TestBuildClosePosition(t *testing.T) {
	b, err := BuildClosePosition(ClosePositionParams{
		Sender: "0x1",
		PositionRef: chain.ObjectRef{
			ObjectID: "0x" + repeatHex("ff"),
			Version:  7,
			Digest:   testDigest(9),
		},
		Market: testMarket(),
	})
	if err != nil {
		t.Fatalf("BuildClosePosition error: %v", err)
	}
	if len(b.commands) != 1 || b.commands[0].kind != cmdMoveCall {
		t.Fatalf("expected a single move call, got %v", commandKinds(b))
	}
	call := b.commands[0]
	if call.function != "close_position" || call.module != "market" {
		t.Fatalf("call target got=%s::%s", call.module, call.function)
	}
	if len(call.args) != 5 {
		t.Fatalf("close_position args got=%d want=5", len(call.args))
	}
}

func TestBuildClosePositionMissingRef(t *testing.T) {
	_, err := BuildClosePosition(ClosePositionParams{Sender: "0x1", Market: testMarket()})
	if err == nil {
		t.Fatal("expected error for missing position ref")
	}
}

func commandKinds(b *Builder) []commandKind {
	out := make([]commandKind, 0, len(b.commands))
	for _, cmd := range b.commands {
		out = append(out, cmd.kind)
	}
	return out
}

func equalKinds(a, b []commandKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
