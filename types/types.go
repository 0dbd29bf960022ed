// Package types defines the parametric data model the consensus core is
// built against (spec §3): heights, rounds, values, validators and the
// votes/proposals validators exchange. Concrete applications supply their
// own Height/Value representation by implementing these small interfaces;
// the core packages (votekeeper, round, proposal, driver) never assume a
// particular encoding.
package types

import (
	"encoding/json"
	"fmt"
)

// Height is a totally ordered, monotonically increasing identifier for one
// instance of the decision problem. Implementations are expected to be
// cheap value types (typically a uint64 wrapper).
type Height uint64

// Next returns the successor height.
func (h Height) Next() Height { return h + 1 }

// NilRound is the sentinel "no round" value, used as pol_round when a
// proposal carries no proof-of-lock round, and as a round.Round zero value
// meaning "undefined" rather than "round 0".
const NilRound Round = -1

// Round identifies one attempt to decide within a height. Rounds are
// numbered from 0; NilRound (-1) means "no round" (e.g. an undefined
// pol_round).
type Round int64

// IsNil reports whether r is the Nil round.
func (r Round) IsNil() bool { return r == NilRound }

// Next returns the successor round. Calling Next on NilRound is a
// programmer error and panics, since there is no "next" round after Nil.
func (r Round) Next() Round {
	if r.IsNil() {
		panic("types: Next called on Nil round")
	}
	return r + 1
}

func (r Round) String() string {
	if r.IsNil() {
		return "nil"
	}
	return fmt.Sprintf("%d", int64(r))
}

// Address identifies a validator. Concrete encoding (e.g. a hash of the
// public key) is left to the embedder.
type Address string

// PublicKey is an opaque, comparable public key identifier. Concrete
// signature verification is delegated to the signing package.
type PublicKey interface {
	// Address derives the validator address this key corresponds to.
	Address() Address

	// Bytes returns a canonical byte encoding, used for equality checks
	// and for hashing into certificates' PubKeyHash fields.
	Bytes() []byte
}

// Signature is an opaque signature over a message. Concrete verification
// is delegated to the signing package.
type Signature []byte

// Value is the opaque payload decided upon at a height. The core never
// inspects a Value's contents; it only ever carries a ValueId alongside
// it for equality comparisons.
type Value interface {
	// ID returns the content-addressed identifier of this value.
	ID() ValueId
}

// ValueId is a content hash identifying a Value. It must be comparable so
// it can be used as a map key (vote tallies are keyed by NilOrVal[ValueId]).
type ValueId string

// NilOrVal is a tagged sum of {Nil, Val(v)}, used as the subject of a vote:
// a validator votes either for a specific value or for Nil (no value).
type NilOrVal[T comparable] struct {
	isVal bool
	val   T
}

// Nil constructs the Nil variant of NilOrVal.
func Nil[T comparable]() NilOrVal[T] {
	return NilOrVal[T]{}
}

// Val constructs the Val(v) variant of NilOrVal.
func Val[T comparable](v T) NilOrVal[T] {
	return NilOrVal[T]{isVal: true, val: v}
}

// IsNil reports whether this is the Nil variant.
func (n NilOrVal[T]) IsNil() bool { return !n.isVal }

// Value returns the wrapped value and true, or the zero value and false
// if n is Nil.
func (n NilOrVal[T]) Value() (T, bool) { return n.val, n.isVal }

// MarshalJSON encodes Nil as JSON null and Val(v) as the encoding of v
// itself, so wire/codec consumers see a plain optional field rather than
// an internal tag struct.
func (n NilOrVal[T]) MarshalJSON() ([]byte, error) {
	if !n.isVal {
		return []byte("null"), nil
	}
	return json.Marshal(n.val)
}

// UnmarshalJSON is MarshalJSON's inverse: a JSON null decodes to Nil,
// anything else decodes into T and becomes Val(v).
func (n *NilOrVal[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = NilOrVal[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = NilOrVal[T]{isVal: true, val: v}
	return nil
}

// UnwrapOr returns the wrapped value, or def if n is Nil.
func (n NilOrVal[T]) UnwrapOr(def T) T {
	if n.isVal {
		return n.val
	}
	return def
}

func (n NilOrVal[T]) String() string {
	if !n.isVal {
		return "nil"
	}
	return fmt.Sprintf("%v", n.val)
}
