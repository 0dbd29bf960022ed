package types

// VoteType distinguishes prevotes from precommits. FaB mode only ever
// produces Prevote votes (spec.md §3).
type VoteType uint8

const (
	_ VoteType = iota
	Prevote
	Precommit
)

func (t VoteType) String() string {
	switch t {
	case Prevote:
		return "prevote"
	case Precommit:
		return "precommit"
	default:
		return "unknown"
	}
}

// Vote is a validator's statement for Nil or Val(id) at (height, round).
// Votes are immutable once created.
type Vote struct {
	Type    VoteType
	Height  Height
	Round   Round
	Value   NilOrVal[ValueId]
	Address Address

	// Extension carries optional application-defined bytes a host may
	// attach to a precommit via the ExtendVote/VerifyVoteExtension hooks
	// (spec.md §4.6 item 8). Always empty for prevotes.
	Extension []byte
}

// SignedVote pairs a Vote with the signature over its sign-bytes.
type SignedVote struct {
	Vote      Vote
	Signature Signature
}

// Equivocates reports whether two votes from the same validator conflict:
// same (height, round, type, address) but different value.
func (v Vote) Equivocates(other Vote) bool {
	return v.Height == other.Height &&
		v.Round == other.Round &&
		v.Type == other.Type &&
		v.Address == other.Address &&
		v.Value != other.Value
}
