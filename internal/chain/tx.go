package chain

import (
	"fmt"

	"golang.org/x/crypto/blake2b"
)

const txDigestPrefix = "TransactionData::"

// ObjectArg references an on-chain object as a call argument. Shared objects
// carry their initial shared version and a mutability flag; owned and
// immutable objects are referenced by id and version.
type ObjectArg struct {
	ID                   string
	Version              uint64
	Shared               bool
	InitialSharedVersion uint64
	Mutable              bool
}

// CallArg is one argument to a move call: either an object reference or a
// pure serialized value.
type CallArg struct {
	Object *ObjectArg
	Pure   []byte
}

func ObjectCallArg(ref ObjectRef, mutable bool) CallArg {
	return CallArg{Object: &ObjectArg{
		ID:                   ref.ID,
		Version:              ref.Version,
		Shared:               ref.Owner == OwnershipShared,
		InitialSharedVersion: ref.InitialSharedVersion,
		Mutable:              mutable,
	}}
}

func PureCallArg(raw []byte) CallArg {
	return CallArg{Pure: raw}
}

// MoveCall invokes one entry function with concrete type and value arguments.
type MoveCall struct {
	Package       string
	Module        string
	Function      string
	TypeArguments []string
	Arguments     []CallArg
}

// Transaction is a full programmable transaction: an ordered command list,
// the sender, and gas facts. Built fresh for every attempt, never mutated
// after encoding.
type Transaction struct {
	Sender     string
	GasBudget  uint64
	GasPrice   uint64
	GasPayment []ObjectRef
	Calls      []MoveCall
}

// Encode serializes the transaction to the canonical byte form used for both
// dry-run and signed submission.
func (t *Transaction) Encode() ([]byte, error) {
	if len(t.Calls) == 0 {
		return nil, fmt.Errorf("encode transaction: no calls")
	}
	var e encoder
	if err := e.writeAddress(t.Sender); err != nil {
		return nil, fmt.Errorf("encode sender: %w", err)
	}
	e.writeU64(t.GasBudget)
	e.writeU64(t.GasPrice)
	e.writeULEB128(uint64(len(t.GasPayment)))
	for _, ref := range t.GasPayment {
		if err := e.writeAddress(ref.ID); err != nil {
			return nil, fmt.Errorf("encode gas payment: %w", err)
		}
		e.writeU64(ref.Version)
	}
	e.writeULEB128(uint64(len(t.Calls)))
	for i, call := range t.Calls {
		if err := encodeCall(&e, call); err != nil {
			return nil, fmt.Errorf("encode call %d (%s::%s): %w", i, call.Module, call.Function, err)
		}
	}
	return e.bytes(), nil
}

func encodeCall(e *encoder, call MoveCall) error {
	if err := e.writeAddress(call.Package); err != nil {
		return err
	}
	e.writeString(call.Module)
	e.writeString(call.Function)
	e.writeULEB128(uint64(len(call.TypeArguments)))
	for _, ta := range call.TypeArguments {
		e.writeString(ta)
	}
	e.writeULEB128(uint64(len(call.Arguments)))
	for _, arg := range call.Arguments {
		switch {
		case arg.Object != nil:
			e.writeByte(0)
			if err := e.writeAddress(arg.Object.ID); err != nil {
				return err
			}
			e.writeBool(arg.Object.Shared)
			if arg.Object.Shared {
				e.writeU64(arg.Object.InitialSharedVersion)
				e.writeBool(arg.Object.Mutable)
			} else {
				e.writeU64(arg.Object.Version)
			}
		case arg.Pure != nil:
			e.writeByte(1)
			e.writeBytes(arg.Pure)
		default:
			return fmt.Errorf("call argument is neither object nor pure")
		}
	}
	return nil
}

// Digest returns the signing digest: blake2b-256 over the prefixed canonical
// bytes.
func (t *Transaction) Digest() ([]byte, error) {
	raw, err := t.Encode()
	if err != nil {
		return nil, err
	}
	sum := blake2b.Sum256(append([]byte(txDigestPrefix), raw...))
	return sum[:], nil
}
