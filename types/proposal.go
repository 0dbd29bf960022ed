package types

// Proposal is a proposer's offer of a value at (height, round), with an
// optional pol_round justifying re-proposal of a value locked/valid at an
// earlier round (spec.md §3, GLOSSARY "pol_round").
type Proposal struct {
	Height   Height
	Round    Round
	Value    Value
	PolRound Round // NilRound if this proposal is not re-justifying a prior polka.
	Proposer Address
}

// SignedProposal pairs a Proposal with the proposer's signature over its
// sign-bytes.
type SignedProposal struct {
	Proposal  Proposal
	Signature Signature
}

// Validity is the verdict the proposal keeper (or an external validity
// checker) attaches to a stored proposal (spec.md §4.4).
type Validity uint8

const (
	_ Validity = iota
	Valid
	Invalid
)

func (v Validity) String() string {
	if v == Valid {
		return "valid"
	}
	return "invalid"
}

// ValidPolRound reports whether p's pol_round is well-formed: either Nil,
// or a defined round strictly less than the proposal's own round
// (spec.md §4.2 "Edge cases").
func (p Proposal) ValidPolRound() bool {
	return p.PolRound.IsNil() || p.PolRound < p.Round
}
