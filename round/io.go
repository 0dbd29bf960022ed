package round

import "github.com/maestro-bft/maestro/types"

// Input is the sum type of round-SM-granularity inputs (spec.md §4.2).
// Exactly one field is meaningful per Kind.
type InputKind uint8

const (
	_ InputKind = iota
	InNewRound
	InProposeValue
	InProposal
	InInvalidProposal
	InProposalAndPolkaPrevious
	InInvalidProposalAndPolkaPrevious
	InProposalAndPolkaCurrent
	InProposalAndPrecommitValue
	InPolkaAny
	InPolkaNil
	InPrecommitAny
	InTimeoutPropose
	InTimeoutPrevote
	InTimeoutPrecommit
	InSkipRound

	// FaB-only inputs (spec.md §4.3).
	InEnoughPrevotesForRound
	InCanDecide
)

// Input carries the kind plus whichever payload fields that kind needs.
type Input struct {
	Kind InputKind

	// Round is used by InNewRound and InSkipRound.
	Round types.Round

	// Value is used by InProposeValue.
	Value types.Value

	// Proposal is used by every *Proposal* kind and InCanDecide.
	Proposal *types.Proposal

	// LockedValue is used by InEnoughPrevotesForRound in FaB mode: if
	// non-nil, the observed 4f+1 prevote certificate also contains a
	// 2f+1 lock on this value (spec.md §4.3 "Locking rule"). If the
	// certificate carried no such lock, this is nil.
	LockedValue *RoundValue
}

// OutputKind is the sum type of round-SM-granularity outputs
// (spec.md §4.2).
type OutputKind uint8

const (
	_ OutputKind = iota
	OutNewRound
	OutPropose
	OutVote
	OutScheduleTimeout
	OutGetValueAndScheduleTimeout
	OutDecision

	// OutRequestValue (FaB only) asks the driver to fetch a specific,
	// already-identified value (from the host's value cache or from a
	// peer) before proposing it. This resolves spec.md §9's FaB open
	// question: a proposer that observes a 2f+1 lock on a value it does
	// not have cached must not silently fall through to the no-lock
	// path; it must fetch the value first.
	OutRequestValue
)

// TimeoutKind names which of the four round timeout kinds to schedule
// (spec.md §3 "Timeout").
type TimeoutKind uint8

const (
	_ TimeoutKind = iota
	TimeoutPropose
	TimeoutPrevote
	TimeoutPrecommit
	TimeoutCommit
)

func (k TimeoutKind) String() string {
	switch k {
	case TimeoutPropose:
		return "propose"
	case TimeoutPrevote:
		return "prevote"
	case TimeoutPrecommit:
		return "precommit"
	case TimeoutCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// Timeout is (round, kind) as in spec.md §3.
type Timeout struct {
	Round types.Round
	Kind  TimeoutKind
}

// Output carries the kind plus whichever payload fields that kind needs.
type Output struct {
	Kind OutputKind

	Round   types.Round // OutNewRound
	Value   types.Value // OutPropose (value to propose), OutDecision
	Vote    *types.Vote // OutVote (unsigned; the driver signs it)
	Timeout Timeout     // OutScheduleTimeout, OutGetValueAndScheduleTimeout

	// PolRound is used alongside OutPropose: the pol_round to attach to
	// the proposal (Nil unless re-proposing a previously valid value).
	PolRound types.Round

	// DecisionRound is the round at which OutDecision's value was
	// decided (spec.md's Decision(round, value)).
	DecisionRound types.Round

	// RequestedValueId is used by OutRequestValue.
	RequestedValueId types.ValueId
}
