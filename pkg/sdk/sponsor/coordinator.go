// Package sponsor orchestrates sponsored transaction execution: the user
// signs, the sponsor co-signs as gas payer, and the transaction is
// submitted with both signatures attached.
//
// Two sponsor variants exist. With a local key the coordinator holds the
// sponsor credential, signs in-process and submits to the chain itself.
// In remote mode it hands the built bytes plus the user signature to the
// backend sponsor endpoint, which signs and submits atomically. Remote is
// the safer default: the sponsor credential never reaches the client.
package sponsor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/Tumo-Markets/Tumo-MVP/pkg/logger"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/backend"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/chain"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/txbuilder"
)

// State of one execution flow. Transitions are strictly sequential; any
// state can move to StateFailed.
type State string

const (
	StateIdle                     State = "idle"
	StateBuilding                 State = "building"
	StateAwaitingUserSignature    State = "awaiting_user_signature"
	StateAwaitingSponsorSignature State = "awaiting_sponsor_signature"
	StateSubmitting               State = "submitting"
	StateCompleted                State = "completed"
	StateFailed                   State = "failed"
)

var (
	// ErrWalletNotConnected is returned when Execute is called without a
	// user signing identity.
	ErrWalletNotConnected = errors.New("wallet not connected")

	// ErrSignatureRejected wraps a signer declining to sign.
	ErrSignatureRejected = errors.New("signature rejected")

	// ErrInFlight is returned when Execute is called while a previous
	// execution on the same coordinator has not finished.
	ErrInFlight = errors.New("an execution is already in flight")
)

// Signer is the capability a signing identity must provide. One adapter
// exists per chain family; this package never sees key material directly.
type Signer interface {
	Address() string
	SignTransactionBytes(txBytes []byte) (string, error)
}

// Result is the outcome of a completed execution.
type Result struct {
	Digest  string
	Effects map[string]any
	Events  []map[string]any
}

// StateListener observes state transitions, e.g. to drive UI status.
type StateListener func(State)

// Coordinator runs sponsored executions. A coordinator allows one in-flight
// execution at a time; each execution builds fresh transaction bytes, never
// reusing stale ones.
type Coordinator struct {
	chain   *chain.Client
	backend *backend.Client // remote variant only

	sponsorSigner  Signer // local variant only
	sponsorAddress string
	gasCoinType    string
	gasPrice       uint64
	gasBudget      uint64

	listener StateListener
	inFlight atomic.Bool

	mu    sync.Mutex
	state State
}

// NewLocal creates a coordinator holding the sponsor credential in-process.
// Only trusted processes (sponsord, operator tooling) should use this; a
// distributed client must use NewRemote.
func NewLocal(chainClient *chain.Client, sponsorSigner Signer, gasCoinType string, gasPrice, gasBudget uint64) *Coordinator {
	return &Coordinator{
		chain:          chainClient,
		sponsorSigner:  sponsorSigner,
		sponsorAddress: sponsorSigner.Address(),
		gasCoinType:    gasCoinType,
		gasPrice:       gasPrice,
		gasBudget:      gasBudget,
		state:          StateIdle,
	}
}

// NewRemote creates a coordinator that delegates sponsor signing and
// submission to the backend. The sponsor address is public information,
// needed only to query the sponsor's gas coins while building.
func NewRemote(chainClient *chain.Client, backendClient *backend.Client, sponsorAddress, gasCoinType string, gasPrice, gasBudget uint64) *Coordinator {
	return &Coordinator{
		chain:          chainClient,
		backend:        backendClient,
		sponsorAddress: sponsorAddress,
		gasCoinType:    gasCoinType,
		gasPrice:       gasPrice,
		gasBudget:      gasBudget,
		state:          StateIdle,
	}
}

// OnStateChange registers a transition listener. Must be set before
// Execute.
func (c *Coordinator) OnStateChange(fn StateListener) { c.listener = fn }

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	if c.listener != nil {
		c.listener(s)
	}
}

func (c *Coordinator) fail(err error) error {
	c.setState(StateFailed)
	return err
}

// Execute runs one sponsored execution: build the transaction via
// buildTx, attach sponsor gas, collect the user signature over the built
// bytes, then the sponsor signature over the same bytes, and submit with
// the signature list ordered [user, sponsor].
//
// The built byte buffer is signed by both parties and never rebuilt in
// between; a rebuild would invalidate the first signature. Failures are
// terminal for this invocation; there is no automatic retry.
func (c *Coordinator) Execute(ctx context.Context, user Signer, buildTx func() (*txbuilder.Builder, error)) (*Result, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, ErrInFlight
	}
	defer c.inFlight.Store(false)

	c.setState(StateBuilding)

	if user == nil || user.Address() == "" {
		return nil, c.fail(ErrWalletNotConnected)
	}

	b, err := buildTx()
	if err != nil {
		return nil, c.fail(err)
	}

	if err := c.attachGas(ctx, b); err != nil {
		return nil, c.fail(err)
	}

	intent, err := b.Build()
	if err != nil {
		return nil, c.fail(errors.Wrap(err, "build transaction"))
	}

	// One byte buffer for every signer. Signatures cover exact byte
	// content, so both signing calls must see identical bytes.
	txBytes := intent.Bytes()
	txB64 := intent.Base64()

	logger.WithField("sender", intent.Sender()).
		WithField("gas_owner", intent.GasOwner()).
		Debugf("transaction built, %d bytes", len(txBytes))

	c.setState(StateAwaitingUserSignature)
	userSig, err := user.SignTransactionBytes(txBytes)
	if err != nil {
		return nil, c.fail(errors.Wrap(ErrSignatureRejected, err.Error()))
	}

	c.setState(StateAwaitingSponsorSignature)

	if c.sponsorSigner != nil {
		sponsorSig, err := c.sponsorSigner.SignTransactionBytes(txBytes)
		if err != nil {
			return nil, c.fail(errors.Wrap(ErrSignatureRejected, err.Error()))
		}

		c.setState(StateSubmitting)
		res, err := c.chain.ExecuteTransaction(ctx, txB64, []string{userSig, sponsorSig})
		if err != nil {
			return nil, c.fail(err)
		}
		c.setState(StateCompleted)
		return fromChainResult(res), nil
	}

	// Remote variant: sponsor signing and submission happen atomically on
	// the backend, so there is no separate Submitting step here.
	resp, err := c.backend.SponsorGas(ctx, backend.SponsorRequest{
		TransactionBytesB64: txB64,
		UserSignatureB64:    userSig,
	})
	if err != nil {
		return nil, c.fail(err)
	}
	c.setState(StateCompleted)
	return &Result{Digest: resp.Digest, Effects: resp.Effects, Events: resp.Events}, nil
}

// attachGas queries the sponsor's gas coins and wires them into the
// builder. Gas always comes from the sponsor's holdings of the network's
// native gas token, never from the position's collateral coins.
func (c *Coordinator) attachGas(ctx context.Context, b *txbuilder.Builder) error {
	coins, err := c.chain.GetCoins(ctx, c.sponsorAddress, c.gasCoinType)
	if err != nil {
		return errors.Wrap(err, "query sponsor gas coins")
	}
	if len(coins) == 0 {
		return errors.Errorf("sponsor wallet %s has no %s coins for gas", c.sponsorAddress, c.gasCoinType)
	}

	refs := make([]chain.ObjectRef, 0, len(coins))
	for _, coin := range coins {
		ref, err := coin.Ref()
		if err != nil {
			return err
		}
		refs = append(refs, ref)
	}

	price := c.gasPrice
	if price == 0 {
		price, err = c.chain.ReferenceGasPrice(ctx)
		if err != nil {
			return errors.Wrap(err, "reference gas price")
		}
	}

	b.SetGas(c.sponsorAddress, refs, price, c.gasBudget)
	return nil
}

func fromChainResult(res *chain.ExecuteResult) *Result {
	out := &Result{Digest: res.Digest, Events: res.Events}
	if res.Effects != nil {
		out.Effects = map[string]any{
			"status":     res.Effects.Status,
			"gasUsed":    res.Effects.GasUsed,
			"checkpoint": res.Effects.Checkpoint,
		}
	}
	return out
}
