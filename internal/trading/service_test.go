package trading

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tumo-Markets/Tumo-MVP/pkg/config"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/backend"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/chain"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/keypair"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/sponsor"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/token"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/txbuilder"
)

// 32 个 '1' 解码为 32 个零字节，可作合法对象摘要
const zeroDigest = "11111111111111111111111111111111"

const (
	marketObjectID    = "0x00000000000000000000000000000000000000000000000000000000000000a1"
	poolObjectID      = "0x00000000000000000000000000000000000000000000000000000000000000a2"
	priceFeedObjectID = "0x00000000000000000000000000000000000000000000000000000000000000a3"
	packageObjectID   = "0x00000000000000000000000000000000000000000000000000000000000000a4"
)

type fakeEnv struct {
	backendSrv *httptest.Server
	chainSrv   *httptest.Server

	marketCalls atomic.Int64
	records     []string // X-Idempotency-Key of ledger posts
	executions  [][]string
}

func newFakeEnv(t *testing.T) *fakeEnv {
	t.Helper()
	env := &fakeEnv{}

	env.backendSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/markets/":
			env.marketCalls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(backend.MarketPage{
				Items: []backend.Market{{
					MarketID:             "btc-perp",
					Symbol:               "BTC-PERP",
					CoinTradeType:        token.BTCType,
					MarketCoinTradeID:    marketObjectID,
					PriceFeedCoinTradeID: priceFeedObjectID,
				}},
				Total: 1, Page: 1, TotalPages: 1,
			})
		case "/positions/open", "/positions/close":
			env.records = append(env.records, r.Header.Get("X-Idempotency-Key"))
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected backend path %s", r.URL.Path)
		}
	}))
	t.Cleanup(env.backendSrv.Close)

	env.chainSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
			ID     int               `json:"id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var result any
		switch req.Method {
		case "sui_getObject":
			var objectID string
			require.NoError(t, json.Unmarshal(req.Params[0], &objectID))
			versions := map[string]int{marketObjectID: 21, poolObjectID: 22, priceFeedObjectID: 23}
			result = map[string]any{
				"data": map[string]any{
					"objectId": objectID,
					"version":  "100",
					"digest":   zeroDigest,
					"owner":    map[string]any{"Shared": map[string]any{"initial_shared_version": versions[objectID]}},
				},
			}
		case "suix_getCoins":
			result = map[string]any{
				"data": []map[string]any{{
					"coinType":     token.BTCType,
					"coinObjectId": "0x30",
					"version":      "4",
					"digest":       zeroDigest,
					"balance":      "100000000",
				}},
				"hasNextPage": false,
			}
		case "suix_getReferenceGasPrice":
			result = "1000"
		case "sui_executeTransactionBlock":
			var sigs []string
			require.NoError(t, json.Unmarshal(req.Params[1], &sigs))
			env.executions = append(env.executions, sigs)
			result = map[string]any{
				"digest":  "OpenDigest",
				"effects": map[string]any{"status": map[string]any{"status": "success"}},
			}
		default:
			t.Errorf("unexpected rpc method %s", req.Method)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
	t.Cleanup(env.chainSrv.Close)

	return env
}

func (env *fakeEnv) service(t *testing.T) (*Service, *LocalWallet) {
	t.Helper()
	chainClient := chain.NewClient(env.chainSrv.URL)
	backendClient := backend.NewClient(env.backendSrv.URL)

	sponsorKp, err := keypair.FromSeed(bytes.Repeat([]byte{0x33}, 32))
	require.NoError(t, err)
	coord := sponsor.NewLocal(chainClient, sponsorKp, token.OCTType, 100, 5_000_000)

	contracts := config.ContractsConfig{
		PackageID:       packageObjectID,
		LiquidityPoolID: poolObjectID,
		ClockID:         "0x6",
	}
	svc := NewService(chainClient, backendClient, coord, contracts, nil)
	t.Cleanup(svc.Close)

	userKp, err := keypair.FromSeed(bytes.Repeat([]byte{0x44}, 32))
	require.NoError(t, err)
	return svc, NewLocalWallet(userKp, chainClient)
}

func TestMarketRefsCaching(t *testing.T) {
	env := newFakeEnv(t)
	svc, _ := env.service(t)

	refs, err := svc.MarketRefs(context.Background(), "btc-perp")
	require.NoError(t, err)
	assert.Equal(t, marketObjectID, refs.MarketID)
	assert.Equal(t, uint64(21), refs.MarketInitialVersion)
	assert.Equal(t, uint64(22), refs.PoolInitialVersion)
	assert.Equal(t, uint64(23), refs.PriceFeedInitialVersion)
	assert.Equal(t, token.BTCType, refs.CoinTradeType)
	assert.Equal(t, packageObjectID, refs.PackageID)

	// 第二次命中缓存，不再访问目录
	_, err = svc.MarketRefs(context.Background(), "btc-perp")
	require.NoError(t, err)
	assert.Equal(t, int64(1), env.marketCalls.Load())
}

func TestOpenPositionFullFlow(t *testing.T) {
	env := newFakeEnv(t)
	svc, wallet := env.service(t)

	res, err := svc.OpenPosition(context.Background(), wallet, OpenRequest{
		MarketID: "btc-perp",
		Side:     SideLong,
		Size:     decimal.RequireFromString("0.5"),
		Leverage: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "OpenDigest", res.Digest)

	// 提交了一次，签名顺序 [用户, 赞助者]
	require.Len(t, env.executions, 1)
	require.Len(t, env.executions[0], 2)

	// 账本记录以交易摘要作幂等键
	require.Len(t, env.records, 1)
	assert.Equal(t, "OpenDigest", env.records[0])
}

func TestOpenPositionUnknownSide(t *testing.T) {
	env := newFakeEnv(t)
	svc, wallet := env.service(t)

	_, err := svc.OpenPosition(context.Background(), wallet, OpenRequest{
		MarketID: "btc-perp",
		Side:     "sideways",
		Size:     decimal.RequireFromString("1"),
		Leverage: 2,
	})
	require.Error(t, err)
}

func TestOpenPositionSubUnitSize(t *testing.T) {
	env := newFakeEnv(t)
	svc, wallet := env.service(t)

	// BTC 8 位小数，1e-9 不足一个最小单位
	_, err := svc.OpenPosition(context.Background(), wallet, OpenRequest{
		MarketID: "btc-perp",
		Side:     SideLong,
		Size:     decimal.RequireFromString("0.000000001"),
		Leverage: 2,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below one base unit")
}

func TestClosePositionFullFlow(t *testing.T) {
	env := newFakeEnv(t)
	svc, wallet := env.service(t)

	res, err := svc.ClosePosition(context.Background(), wallet, CloseRequest{
		MarketID:   "btc-perp",
		PositionID: "0x00000000000000000000000000000000000000000000000000000000000000b1",
		Side:       SideLong,
		Size:       "0.5",
	})
	require.NoError(t, err)
	assert.Equal(t, "OpenDigest", res.Digest)
	require.Len(t, env.records, 1)
}

func TestDirectionOf(t *testing.T) {
	cases := []struct {
		in      string
		want    byte
		wantErr bool
	}{
		{"long", txbuilder.DirectionLong, false},
		{"LONG", txbuilder.DirectionLong, false},
		{" short ", txbuilder.DirectionShort, false},
		{"up", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := directionOf(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}
