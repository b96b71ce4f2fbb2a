package chain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// rpcHandler 按方法分发的假全节点
func rpcHandler(t *testing.T, handlers map[string]func(params []json.RawMessage) (any, *rpcTestError)) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
			ID     int               `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad rpc request: %v", err)
			return
		}
		h, ok := handlers[req.Method]
		if !ok {
			t.Errorf("unexpected rpc method %s", req.Method)
			return
		}
		result, rpcErr := h(req.Params)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = map[string]any{"code": rpcErr.code, "message": rpcErr.message}
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

type rpcTestError struct {
	code    int
	message string
}

func TestGetCoinsFlattensPagination(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(rpcHandler(t, map[string]func([]json.RawMessage) (any, *rpcTestError){
		"suix_getCoins": func(params []json.RawMessage) (any, *rpcTestError) {
			calls++
			if calls == 1 {
				cursor := "page-2"
				return coinPage{
					Data: []Coin{
						{CoinObjectID: "0x1", Version: "1", Digest: "d1", Balance: "100"},
						{CoinObjectID: "0x2", Version: "1", Digest: "d2", Balance: "200"},
					},
					NextCursor:  &cursor,
					HasNextPage: true,
				}, nil
			}
			return coinPage{
				Data: []Coin{{CoinObjectID: "0x3", Version: "1", Digest: "d3", Balance: "300"}},
			}, nil
		},
	}))
	defer srv.Close()

	coins, err := NewClient(srv.URL).GetCoins(context.Background(), "0xowner", "0x2::oct::OCT")
	if err != nil {
		t.Fatalf("GetCoins error: %v", err)
	}
	if len(coins) != 3 {
		t.Fatalf("coins got=%d want=3", len(coins))
	}
	if calls != 2 {
		t.Fatalf("rpc calls got=%d want=2", calls)
	}
	if coins[2].CoinObjectID != "0x3" {
		t.Fatalf("page order broken: %+v", coins)
	}
}

// 没有任何币是合法结果，不是错误
func TestGetCoinsEmpty(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, map[string]func([]json.RawMessage) (any, *rpcTestError){
		"suix_getCoins": func(params []json.RawMessage) (any, *rpcTestError) {
			return coinPage{Data: []Coin{}}, nil
		},
	}))
	defer srv.Close()

	coins, err := NewClient(srv.URL).GetCoins(context.Background(), "0xowner", "0x2::oct::OCT")
	if err != nil {
		t.Fatalf("GetCoins error: %v", err)
	}
	if len(coins) != 0 {
		t.Fatalf("coins got=%d want=0", len(coins))
	}
}

func TestRPCErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, map[string]func([]json.RawMessage) (any, *rpcTestError){
		"suix_getBalance": func(params []json.RawMessage) (any, *rpcTestError) {
			return nil, &rpcTestError{code: -32602, message: "invalid address"}
		},
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetBalance(context.Background(), "bad", "0x2::oct::OCT")
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != -32602 || rpcErr.Method != "suix_getBalance" {
		t.Fatalf("RPCError fields got=%+v", rpcErr)
	}
}

func TestReferenceGasPrice(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, map[string]func([]json.RawMessage) (any, *rpcTestError){
		"suix_getReferenceGasPrice": func(params []json.RawMessage) (any, *rpcTestError) {
			return "750", nil
		},
	}))
	defer srv.Close()

	price, err := NewClient(srv.URL).ReferenceGasPrice(context.Background())
	if err != nil {
		t.Fatalf("ReferenceGasPrice error: %v", err)
	}
	if price != 750 {
		t.Fatalf("price got=%d want=750", price)
	}
}

func TestExecuteTransactionFailureStatus(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, map[string]func([]json.RawMessage) (any, *rpcTestError){
		"sui_executeTransactionBlock": func(params []json.RawMessage) (any, *rpcTestError) {
			return ExecuteResult{
				Digest: "D1",
				Effects: &TransactionEffects{
					Status: ExecutionStatus{Status: "failure", Error: "InsufficientGas"},
				},
			}, nil
		},
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).ExecuteTransaction(context.Background(), "dHg=", []string{"sig1", "sig2"})
	if err == nil {
		t.Fatal("expected error for failed execution status")
	}
}

func TestExecuteTransactionSuccess(t *testing.T) {
	var gotSigs []string
	srv := httptest.NewServer(rpcHandler(t, map[string]func([]json.RawMessage) (any, *rpcTestError){
		"sui_executeTransactionBlock": func(params []json.RawMessage) (any, *rpcTestError) {
			if len(params) >= 2 {
				_ = json.Unmarshal(params[1], &gotSigs)
			}
			return ExecuteResult{
				Digest:  "D2",
				Effects: &TransactionEffects{Status: ExecutionStatus{Status: "success"}},
			}, nil
		},
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL).ExecuteTransaction(context.Background(), "dHg=", []string{"userSig", "sponsorSig"})
	if err != nil {
		t.Fatalf("ExecuteTransaction error: %v", err)
	}
	if res.Digest != "D2" {
		t.Fatalf("digest got=%s", res.Digest)
	}
	// 签名顺序必须原样透传：发送者在前，gas 所有者在后
	if len(gotSigs) != 2 || gotSigs[0] != "userSig" || gotSigs[1] != "sponsorSig" {
		t.Fatalf("signature order got=%v", gotSigs)
	}
}

func TestInitialSharedVersion(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, map[string]func([]json.RawMessage) (any, *rpcTestError){
		"sui_getObject": func(params []json.RawMessage) (any, *rpcTestError) {
			return map[string]any{
				"data": map[string]any{
					"objectId": "0xabc",
					"version":  "42",
					"digest":   "D3",
					"owner":    map[string]any{"Shared": map[string]any{"initial_shared_version": 17}},
				},
			}, nil
		},
	}))
	defer srv.Close()

	v, err := NewClient(srv.URL).InitialSharedVersion(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("InitialSharedVersion error: %v", err)
	}
	if v != 17 {
		t.Fatalf("initial shared version got=%d want=17", v)
	}
}

func TestGetObjectRef(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, map[string]func([]json.RawMessage) (any, *rpcTestError){
		"sui_getObject": func(params []json.RawMessage) (any, *rpcTestError) {
			return map[string]any{
				"data": map[string]any{
					"objectId": "0xpos",
					"version":  "99",
					"digest":   "D4",
					"owner":    map[string]any{"AddressOwner": "0xuser"},
				},
			}, nil
		},
	}))
	defer srv.Close()

	ref, err := NewClient(srv.URL).GetObjectRef(context.Background(), "0xpos")
	if err != nil {
		t.Fatalf("GetObjectRef error: %v", err)
	}
	if ref.ObjectID != "0xpos" || ref.Version != 99 || ref.Digest != "D4" {
		t.Fatalf("object ref got=%+v", ref)
	}
}
