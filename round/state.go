// Package round implements spec.md §4.2/§4.3: the per-round deterministic
// state machine, in both its Tendermint and FaB variants. apply is a pure
// function (state, info, input) -> (state, outputs); it performs no I/O
// and is driven exclusively by the driver package (spec.md §5).
//
// Grounded on malachite's core-round/src/state_machine.rs line-for-line
// (the "Ref: Lxx" comments in that file map directly to spec.md §4.2's
// transition table), generalized to Go idiom the way gordian's
// tmstate/internal/tsi package structures round lifecycle state
// (roundlifecycle.go).
package round

import "github.com/maestro-bft/maestro/types"

// Step is where a round currently stands (spec.md §3 "Round state").
// Prepropose exists only in FaB mode.
type Step uint8

const (
	Unstarted Step = iota
	Prepropose
	Propose
	Prevote
	Precommit
	Commit
)

func (s Step) String() string {
	switch s {
	case Unstarted:
		return "unstarted"
	case Prepropose:
		return "prepropose"
	case Propose:
		return "propose"
	case Prevote:
		return "prevote"
	case Precommit:
		return "precommit"
	case Commit:
		return "commit"
	default:
		return "unknown"
	}
}

// RoundValue pairs a value with the round at which it was locked/became
// valid (spec.md §3 "locked"/"valid"). ValueId is always set, even when
// Value is nil: a FaB certificate can embed a 2f+1 lock on a value id
// the node has not cached yet, in which case Value is nil until the
// value is fetched (spec.md §9 FaB open question) but ValueId is still
// known from the certificate itself.
type RoundValue struct {
	Value   types.Value
	ValueId types.ValueId
	Round   types.Round
}

// State is the round state machine's state for one round of one height
// (spec.md §3 "Round state"). Invariant: if Step == Commit, Decision is
// non-nil; if Locked is non-nil, Valid is non-nil with Valid.Round >=
// Locked.Round.
type State struct {
	Height types.Height
	Round  types.Round
	Step   Step

	Locked   *RoundValue
	Valid    *RoundValue
	Decision *Decision
}

// Decision records the round and value an honest node decided on
// (spec.md §3: "a possibly-present decision (round, value)").
type Decision struct {
	Round types.Round
	Value types.Value
}

// NewState returns the zero (Unstarted) state for a height, with Round
// set to NilRound until the first NewRound input.
func NewState(h types.Height) State {
	return State{Height: h, Round: types.NilRound, Step: Unstarted}
}

func (s State) withStep(step Step) State {
	s.Step = step
	return s
}

func (s State) withLocked(rv RoundValue) State {
	s.Locked = &rv
	return s
}

func (s State) withValid(rv RoundValue) State {
	s.Valid = &rv
	return s
}

// Info carries the immutable context for one apply call: which round the
// input is for (may differ from the state's current round -- e.g. a
// late-arriving message for a round we've already left), our own address,
// and the proposer for the round we are at (spec.md §4.2 "info carries
// {input_round, our_address, proposer_address}").
type Info struct {
	InputRound types.Round
	Address    types.Address
	Proposer   types.Address
}

// IsProposer reports whether we are the proposer for this round.
func (i Info) IsProposer() bool { return i.Address == i.Proposer }

// Transition is the result of apply: the next state, plus zero or more
// outputs for the driver to act on.
type Transition struct {
	State   State
	Outputs []Output
}

func to(s State, outs ...Output) Transition {
	return Transition{State: s, Outputs: outs}
}

func invalid(s State) Transition {
	return Transition{State: s}
}

// isValidPolRound reports whether pol_round is defined and strictly less
// than the state's current round (spec.md §4.2 "Edge cases").
func isValidPolRound(s State, polRound types.Round) bool {
	return !polRound.IsNil() && polRound < s.Round
}
