// Package bfttest provides the "minimal test" instantiation of the
// parametric context described in spec.md §1 and §9's design note: the
// core packages never assume a concrete Value, PublicKey or Signer, so
// exercising them end to end needs one small, deterministic
// implementation of each. Grounded on the teacher's tmconsensustest
// package (Fixture, PrivVals, NewEd25519Fixture, DeterministicValidatorsEd25519):
// a test-only, crypto-light counterpart to the production Ed25519
// signing scheme a real deployment would plug in instead.
package bfttest

import (
	"fmt"

	"github.com/maestro-bft/maestro/types"
)

// Value is a byte-slice-backed types.Value whose ID is the bytes
// themselves, stringified. It stands in for whatever application-level
// payload a real deployment decides upon (spec.md §3 "the core never
// inspects a Value's contents").
type Value []byte

func (v Value) ID() types.ValueId { return types.ValueId(v) }

func (v Value) String() string { return fmt.Sprintf("Value(%q)", []byte(v)) }
