// Package chain is a thin JSON-RPC client for a OneChain/Sui fullnode. It
// covers exactly what the trading flow needs: coin queries, balance lookup
// and transaction submission.
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// RPCError wraps any transport-level or protocol-level failure talking to
// the fullnode. Callers treat it as the spec's NetworkError class; there is
// no retry at this layer.
type RPCError struct {
	Method string
	Code   int
	Msg    string
	cause  error
}

func (e *RPCError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("rpc %s: %d %s", e.Method, e.Code, e.Msg)
	}
	return fmt.Sprintf("rpc %s: %s", e.Method, e.Msg)
}

func (e *RPCError) Unwrap() error { return e.cause }

// Client talks to one fullnode over JSON-RPC 2.0.
type Client struct {
	http *resty.Client
}

// NewClient creates a fullnode client. resty picks up proxy settings from
// the environment.
func NewClient(rpcURL string) *Client {
	http := resty.New().
		SetBaseURL(strings.TrimSuffix(rpcURL, "/")).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")
	return &Client{http: http}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, out any, params ...any) error {
	if params == nil {
		params = []any{}
	}
	req := rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params}

	var rpcResp rpcResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&rpcResp).
		Post("")
	if err != nil {
		return &RPCError{Method: method, Msg: err.Error(), cause: err}
	}
	if resp.IsError() {
		return &RPCError{Method: method, Code: resp.StatusCode(), Msg: resp.Status()}
	}
	if rpcResp.Error != nil {
		return &RPCError{Method: method, Code: rpcResp.Error.Code, Msg: rpcResp.Error.Message}
	}
	if rpcResp.Result == nil {
		return &RPCError{Method: method, Msg: "empty result"}
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return &RPCError{Method: method, Msg: "malformed result", cause: err}
		}
	}
	return nil
}

// GetCoins lists every spendable coin object of coinType owned by owner,
// flattening the node's cursor pagination. An owner with no coins yields an
// empty slice, not an error.
func (c *Client) GetCoins(ctx context.Context, owner, coinType string) ([]Coin, error) {
	var (
		all    []Coin
		cursor *string
	)
	for {
		var page coinPage
		if err := c.call(ctx, "suix_getCoins", &page, owner, coinType, cursor, nil); err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		if !page.HasNextPage || page.NextCursor == nil {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

// GetBalance returns the aggregate balance of coinType for owner.
func (c *Client) GetBalance(ctx context.Context, owner, coinType string) (Balance, error) {
	var bal Balance
	if err := c.call(ctx, "suix_getBalance", &bal, owner, coinType); err != nil {
		return Balance{}, err
	}
	return bal, nil
}

// GetObjectRef resolves the current (version, digest) reference of an
// owned object, e.g. a position object about to be closed.
func (c *Client) GetObjectRef(ctx context.Context, objectID string) (ObjectRef, error) {
	var resp objectResponse
	if err := c.call(ctx, "sui_getObject", &resp, objectID, map[string]bool{"showOwner": true}); err != nil {
		return ObjectRef{}, err
	}
	if resp.Error != nil {
		return ObjectRef{}, &RPCError{Method: "sui_getObject", Msg: fmt.Sprintf("%s: %s", resp.Error.Code, objectID)}
	}
	if resp.Data == nil {
		return ObjectRef{}, &RPCError{Method: "sui_getObject", Msg: "empty object data"}
	}
	var version uint64
	if _, err := fmt.Sscan(resp.Data.Version, &version); err != nil {
		return ObjectRef{}, &RPCError{Method: "sui_getObject", Msg: "malformed object version", cause: err}
	}
	return ObjectRef{ObjectID: resp.Data.ObjectID, Version: version, Digest: resp.Data.Digest}, nil
}

// InitialSharedVersion returns the version a shared object was shared at.
// Shared object inputs reference this version, not the current one.
func (c *Client) InitialSharedVersion(ctx context.Context, objectID string) (uint64, error) {
	var resp objectResponse
	if err := c.call(ctx, "sui_getObject", &resp, objectID, map[string]bool{"showOwner": true}); err != nil {
		return 0, err
	}
	if resp.Error != nil {
		return 0, &RPCError{Method: "sui_getObject", Msg: fmt.Sprintf("%s: %s", resp.Error.Code, objectID)}
	}
	if resp.Data == nil || resp.Data.Owner == nil || resp.Data.Owner.Shared == nil {
		return 0, &RPCError{Method: "sui_getObject", Msg: "object is not shared: " + objectID}
	}
	return resp.Data.Owner.Shared.InitialSharedVersion, nil
}

// ReferenceGasPrice returns the network's current reference gas price.
func (c *Client) ReferenceGasPrice(ctx context.Context) (uint64, error) {
	var price string
	if err := c.call(ctx, "suix_getReferenceGasPrice", &price); err != nil {
		return 0, err
	}
	var v uint64
	if _, err := fmt.Sscan(price, &v); err != nil {
		return 0, &RPCError{Method: "suix_getReferenceGasPrice", Msg: "malformed result", cause: err}
	}
	return v, nil
}

// ExecuteTransaction submits serialized transaction bytes with the given
// signatures. Signature order matters to the node: the sender's signature
// first, the gas owner's second.
func (c *Client) ExecuteTransaction(ctx context.Context, txBytesB64 string, signaturesB64 []string) (*ExecuteResult, error) {
	options := map[string]bool{
		"showEffects": true,
		"showEvents":  true,
	}
	var result ExecuteResult
	if err := c.call(ctx, "sui_executeTransactionBlock", &result, txBytesB64, signaturesB64, options, nil); err != nil {
		return nil, err
	}
	if result.Effects != nil && result.Effects.Status.Status != "success" {
		return &result, errors.Errorf("transaction rejected by chain: %s", result.Effects.Status.Error)
	}
	return &result, nil
}
