// Package txbuilder constructs programmable transactions for the exchange's
// on-chain entry points and serializes them to canonical BCS bytes.
//
// A transaction is assembled as inputs (object references and pure values)
// plus an ordered command list (merge, split, move call). Build() freezes
// the result: the returned Intent's bytes never change, because both the
// user and the sponsor sign over exactly those bytes.
package txbuilder

import (
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/chain"
)

type argKind byte

const (
	argGasCoin argKind = iota
	argInput
	argResult
	argNestedResult
)

// Argument refers to a transaction input or a previous command's result.
type Argument struct {
	kind   argKind
	index  uint16
	nested uint16
}

type inputKind byte

const (
	inputPure inputKind = iota
	inputOwnedObject
	inputSharedObject
)

type input struct {
	kind  inputKind
	pure  []byte
	owned chain.ObjectRef
	// shared object fields
	sharedID      string
	sharedVersion uint64
	sharedMutable bool
}

type commandKind byte

const (
	cmdMoveCall commandKind = iota
	cmdSplitCoins
	cmdMergeCoins
)

type command struct {
	kind commandKind

	// move call
	pkg      string
	module   string
	function string
	typeArgs []string
	args     []Argument

	// split
	splitCoin    Argument
	splitAmounts []Argument

	// merge
	mergeDest    Argument
	mergeSources []Argument
}

// Builder accumulates inputs and commands. Not safe for concurrent use.
type Builder struct {
	sender   string
	inputs   []input
	commands []command

	gasOwner   string
	gasPayment []chain.ObjectRef
	gasBudget  uint64
	gasPrice   uint64
}

// New creates a builder for the given sender. The sender is fixed at build
// time and must match the signing wallet.
func New(sender string) *Builder {
	return &Builder{sender: sender}
}

// Sender returns the transaction sender.
func (b *Builder) Sender() string { return b.sender }

// PureU64 adds a u64 pure input.
func (b *Builder) PureU64(v uint64) Argument {
	return b.addInput(input{kind: inputPure, pure: encodePureU64(v)})
}

// PureU8 adds a u8 pure input.
func (b *Builder) PureU8(v byte) Argument {
	return b.addInput(input{kind: inputPure, pure: []byte{v}})
}

// OwnedObject adds an owned object input pinned at ref's version.
func (b *Builder) OwnedObject(ref chain.ObjectRef) Argument {
	return b.addInput(input{kind: inputOwnedObject, owned: ref})
}

// SharedObject adds a shared object input.
func (b *Builder) SharedObject(objectID string, initialVersion uint64, mutable bool) Argument {
	return b.addInput(input{
		kind:          inputSharedObject,
		sharedID:      objectID,
		sharedVersion: initialVersion,
		sharedMutable: mutable,
	})
}

func (b *Builder) addInput(in input) Argument {
	b.inputs = append(b.inputs, in)
	return Argument{kind: argInput, index: uint16(len(b.inputs) - 1)}
}

// MergeCoins merges sources into dest. Result is void.
func (b *Builder) MergeCoins(dest Argument, sources []Argument) {
	b.commands = append(b.commands, command{kind: cmdMergeCoins, mergeDest: dest, mergeSources: sources})
}

// SplitCoins splits amounts off coin, returning the first split result as
// an argument for later commands.
func (b *Builder) SplitCoins(coin Argument, amounts []Argument) Argument {
	b.commands = append(b.commands, command{kind: cmdSplitCoins, splitCoin: coin, splitAmounts: amounts})
	return Argument{kind: argNestedResult, index: uint16(len(b.commands) - 1), nested: 0}
}

// MoveCall invokes target ("0xpkg::module::function") with the given type
// arguments and call arguments.
func (b *Builder) MoveCall(target string, typeArgs []string, args ...Argument) (Argument, error) {
	parts := strings.Split(target, "::")
	if len(parts) != 3 {
		return Argument{}, errors.Errorf("bad move call target %q", target)
	}
	b.commands = append(b.commands, command{
		kind:     cmdMoveCall,
		pkg:      parts[0],
		module:   parts[1],
		function: parts[2],
		typeArgs: typeArgs,
		args:     args,
	})
	return Argument{kind: argResult, index: uint16(len(b.commands) - 1)}, nil
}

// SetGas assigns the gas owner and payment coins. For sponsored
// transactions the owner is the sponsor's address and the payment comes
// from the sponsor's own gas-token coins, never from the position's
// collateral.
func (b *Builder) SetGas(owner string, payment []chain.ObjectRef, price, budget uint64) {
	b.gasOwner = owner
	b.gasPayment = payment
	b.gasPrice = price
	b.gasBudget = budget
}

// GasOwner returns the configured gas owner; empty means the sender pays.
func (b *Builder) GasOwner() string { return b.gasOwner }

// Intent is an immutable built transaction. Its serialized bytes are what
// every party signs; rebuilding produces a new Intent and invalidates any
// signature taken over the old one.
type Intent struct {
	bytes    []byte
	sender   string
	gasOwner string
}

// Bytes returns a copy of the serialized transaction.
func (i *Intent) Bytes() []byte {
	out := make([]byte, len(i.bytes))
	copy(out, i.bytes)
	return out
}

// Base64 returns the serialized transaction in base64.
func (i *Intent) Base64() string { return base64.StdEncoding.EncodeToString(i.bytes) }

// Sender returns the transaction sender address.
func (i *Intent) Sender() string { return i.sender }

// GasOwner returns the gas owner address (sender if unsponsored).
func (i *Intent) GasOwner() string {
	if i.gasOwner == "" {
		return i.sender
	}
	return i.gasOwner
}

// Digest returns the transaction digest:
// base58(blake2b-256("TransactionData::" || bytes)).
func (i *Intent) Digest() string {
	prefixed := append([]byte("TransactionData::"), i.bytes...)
	sum := blake2b.Sum256(prefixed)
	return base58Encode(sum[:])
}

// Build serializes the transaction to canonical BCS. The builder can be
// reused afterwards (e.g. to attach gas and build again before anything was
// signed), but an Intent itself is final.
func (b *Builder) Build() (*Intent, error) {
	if strings.TrimSpace(b.sender) == "" {
		return nil, errors.New("sender not set")
	}
	if len(b.commands) == 0 {
		return nil, errors.New("no commands")
	}

	w := &bcsWriter{}

	// TransactionData::V1
	w.uleb(0)

	// kind: ProgrammableTransaction
	w.uleb(0)
	if err := b.writeInputs(w); err != nil {
		return nil, err
	}
	if err := b.writeCommands(w); err != nil {
		return nil, err
	}

	senderAddr, err := decodeAddress(b.sender)
	if err != nil {
		return nil, errors.Wrap(err, "sender")
	}
	w.fixedBytes(senderAddr)

	if err := b.writeGasData(w); err != nil {
		return nil, err
	}

	// expiration: None
	w.uleb(0)

	raw := w.bytes()
	out := make([]byte, len(raw))
	copy(out, raw)
	return &Intent{bytes: out, sender: b.sender, gasOwner: b.gasOwner}, nil
}

func (b *Builder) writeInputs(w *bcsWriter) error {
	w.uleb(uint64(len(b.inputs)))
	for i, in := range b.inputs {
		switch in.kind {
		case inputPure:
			w.uleb(0)
			w.vecBytes(in.pure)
		case inputOwnedObject:
			w.uleb(1)
			w.uleb(0) // ImmOrOwnedObject
			if err := writeObjectRef(w, in.owned); err != nil {
				return errors.Wrapf(err, "input %d", i)
			}
		case inputSharedObject:
			w.uleb(1)
			w.uleb(1) // SharedObject
			id, err := decodeAddress(in.sharedID)
			if err != nil {
				return errors.Wrapf(err, "input %d", i)
			}
			w.fixedBytes(id)
			w.u64(in.sharedVersion)
			w.bool(in.sharedMutable)
		}
	}
	return nil
}

func (b *Builder) writeCommands(w *bcsWriter) error {
	w.uleb(uint64(len(b.commands)))
	for i, cmd := range b.commands {
		switch cmd.kind {
		case cmdMoveCall:
			w.uleb(0)
			pkg, err := decodeAddress(cmd.pkg)
			if err != nil {
				return errors.Wrapf(err, "command %d", i)
			}
			w.fixedBytes(pkg)
			w.str(cmd.module)
			w.str(cmd.function)
			w.uleb(uint64(len(cmd.typeArgs)))
			for _, tag := range cmd.typeArgs {
				if err := writeTypeTag(w, tag); err != nil {
					return errors.Wrapf(err, "command %d", i)
				}
			}
			w.uleb(uint64(len(cmd.args)))
			for _, a := range cmd.args {
				writeArgument(w, a)
			}
		case cmdSplitCoins:
			w.uleb(1)
			writeArgument(w, cmd.splitCoin)
			w.uleb(uint64(len(cmd.splitAmounts)))
			for _, a := range cmd.splitAmounts {
				writeArgument(w, a)
			}
		case cmdMergeCoins:
			w.uleb(2)
			writeArgument(w, cmd.mergeDest)
			w.uleb(uint64(len(cmd.mergeSources)))
			for _, a := range cmd.mergeSources {
				writeArgument(w, a)
			}
		}
	}
	return nil
}

func (b *Builder) writeGasData(w *bcsWriter) error {
	w.uleb(uint64(len(b.gasPayment)))
	for _, ref := range b.gasPayment {
		if err := writeObjectRef(w, ref); err != nil {
			return errors.Wrap(err, "gas payment")
		}
	}
	owner := b.gasOwner
	if owner == "" {
		owner = b.sender
	}
	ownerAddr, err := decodeAddress(owner)
	if err != nil {
		return errors.Wrap(err, "gas owner")
	}
	w.fixedBytes(ownerAddr)
	w.u64(b.gasPrice)
	w.u64(b.gasBudget)
	return nil
}

func writeObjectRef(w *bcsWriter, ref chain.ObjectRef) error {
	id, err := decodeAddress(ref.ObjectID)
	if err != nil {
		return err
	}
	digest, err := decodeDigest(ref.Digest)
	if err != nil {
		return err
	}
	w.fixedBytes(id)
	w.u64(ref.Version)
	// digest serializes as vec<u8> of fixed 32 length
	w.vecBytes(digest)
	return nil
}

// writeTypeTag encodes a struct type tag like "0xabc::btc::BTC". Only
// struct tags appear in this module's entry points.
func writeTypeTag(w *bcsWriter, tag string) error {
	parts := strings.Split(tag, "::")
	if len(parts) != 3 {
		return errors.Errorf("bad type tag %q", tag)
	}
	addr, err := decodeAddress(parts[0])
	if err != nil {
		return err
	}
	w.uleb(7) // TypeTag::Struct
	w.fixedBytes(addr)
	w.str(parts[1])
	w.str(parts[2])
	w.uleb(0) // no type params
	return nil
}

func writeArgument(w *bcsWriter, a Argument) {
	switch a.kind {
	case argGasCoin:
		w.uleb(0)
	case argInput:
		w.uleb(1)
		w.u16(a.index)
	case argResult:
		w.uleb(2)
		w.u16(a.index)
	case argNestedResult:
		w.uleb(3)
		w.u16(a.index)
		w.u16(a.nested)
	}
}
