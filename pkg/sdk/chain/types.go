package chain

import (
	"fmt"
	"strconv"
)

// ObjectRef pins an owned object at an exact version. A transaction that
// references it consumes that version; referencing a stale ref fails at
// submission.
type ObjectRef struct {
	ObjectID string `json:"objectId"`
	Version  uint64 `json:"version"`
	Digest   string `json:"digest"`
}

// Coin is one owned coin object as returned by suix_getCoins.
type Coin struct {
	CoinType     string `json:"coinType"`
	CoinObjectID string `json:"coinObjectId"`
	Version      string `json:"version"`
	Digest       string `json:"digest"`
	Balance      string `json:"balance"`
}

// BalanceUint64 parses the balance field. The node reports it as a decimal
// string because it may exceed JS number precision.
func (c Coin) BalanceUint64() (uint64, error) {
	v, err := strconv.ParseUint(c.Balance, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("coin %s: bad balance %q: %w", c.CoinObjectID, c.Balance, err)
	}
	return v, nil
}

// Ref converts the coin into an object reference usable as a transaction
// input.
func (c Coin) Ref() (ObjectRef, error) {
	ver, err := strconv.ParseUint(c.Version, 10, 64)
	if err != nil {
		return ObjectRef{}, fmt.Errorf("coin %s: bad version %q: %w", c.CoinObjectID, c.Version, err)
	}
	return ObjectRef{ObjectID: c.CoinObjectID, Version: ver, Digest: c.Digest}, nil
}

type coinPage struct {
	Data        []Coin  `json:"data"`
	NextCursor  *string `json:"nextCursor"`
	HasNextPage bool    `json:"hasNextPage"`
}

// Balance is the aggregate balance of one coin type for an owner.
type Balance struct {
	CoinType        string `json:"coinType"`
	CoinObjectCount int    `json:"coinObjectCount"`
	TotalBalance    string `json:"totalBalance"`
}

// objectResponse is the envelope of sui_getObject.
type objectResponse struct {
	Data *struct {
		ObjectID string       `json:"objectId"`
		Version  string       `json:"version"`
		Digest   string       `json:"digest"`
		Owner    *objectOwner `json:"owner,omitempty"`
	} `json:"data,omitempty"`
	Error *struct {
		Code     string `json:"code"`
		ObjectID string `json:"object_id,omitempty"`
	} `json:"error,omitempty"`
}

// objectOwner decodes the owner field. Shared objects carry the version
// they were shared at, which is what transaction inputs reference.
type objectOwner struct {
	AddressOwner string `json:"AddressOwner,omitempty"`
	Shared       *struct {
		InitialSharedVersion uint64 `json:"initial_shared_version"`
	} `json:"Shared,omitempty"`
}

// ExecutionStatus mirrors effects.status of an executed transaction.
type ExecutionStatus struct {
	Status string `json:"status"` // "success" or "failure"
	Error  string `json:"error,omitempty"`
}

// TransactionEffects is the subset of execution effects the SDK consumes.
type TransactionEffects struct {
	Status     ExecutionStatus `json:"status"`
	GasUsed    map[string]any  `json:"gasUsed,omitempty"`
	Checkpoint string          `json:"checkpoint,omitempty"`
}

// ExecuteResult is the outcome of sui_executeTransactionBlock.
type ExecuteResult struct {
	Digest  string              `json:"digest"`
	Effects *TransactionEffects `json:"effects,omitempty"`
	Events  []map[string]any    `json:"events,omitempty"`
}
