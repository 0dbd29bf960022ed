// Package wire defines the three on-the-wire message shapes spec.md §6
// names: the signed ConsensusMessage envelope, the ProposalPart stream
// used to reassemble a proposal value out of band, and the Sync
// messages used to catch a lagging node up. These are plain data types;
// (de)serializing them is the codec package's job, and moving bytes
// between peers is left to the embedder (spec.md §1 excludes transport
// implementation), exactly as the teacher's tmcodec.ConsensusMessage is
// a pure data wrapper independent of tmp2p.
package wire

import (
	"github.com/google/uuid"

	"github.com/maestro-bft/maestro/types"
)

// ConsensusMessage is the signed envelope carrying either a vote or a
// proposal (spec.md §6 item 1). Exactly one field is set; grounded on
// tmcodec.ConsensusMessage's "exactly one of the fields must be set"
// convention.
type ConsensusMessage struct {
	Vote     *types.SignedVote
	Proposal *types.SignedProposal
}

// PartKind distinguishes the three ProposalPart variants (spec.md §6
// item 2: "Init and Fin parts are mandatory; intermediate Data parts
// compose the value").
type PartKind uint8

const (
	_ PartKind = iota
	PartInit
	PartData
	PartFin
)

// ProposalPartInit opens a proposal-value stream, grounded on
// malachite's streamed-parts design (see streaming package) which
// carries the proposal's round metadata in its first part rather than
// in every Data part.
type ProposalPartInit struct {
	Height   types.Height
	Round    types.Round
	PolRound types.Round
	Proposer types.Address
}

// ProposalPartFin closes a stream: the proposer's signature over the
// value id obtained by hashing every Data part's content in sequence
// order (spec.md §6 item 2 "The hash of all Data parts equals the value
// id; the Fin part carries the proposer's signature over that id").
type ProposalPartFin struct {
	ValueId   types.ValueId
	Signature types.Signature
}

// ProposalPart is one message in a proposal-value stream (spec.md §6
// item 2). StreamID is opaque bytes on the wire; this repo uses a uuid
// to generate them (SPEC_FULL.md §B).
type ProposalPart struct {
	StreamID uuid.UUID
	Sequence uint64
	Kind     PartKind

	Init *ProposalPartInit // set iff Kind == PartInit
	Data []byte            // set iff Kind == PartData
	Fin  *ProposalPartFin  // set iff Kind == PartFin
}

// Status announces a peer's sync position (spec.md §6 item 3).
type Status struct {
	PeerID           string
	TipHeight        types.Height
	HistoryMinHeight types.Height
}

// ValueRange is an inclusive height range on the wire.
type ValueRange struct {
	Start, End types.Height
}

// ValueRequest asks a peer for every decided value in Range.
type ValueRequest struct {
	Range ValueRange
}

// EncodedValue is one decided value as it travels on the wire: opaque
// bytes plus the certificate proving the decision (spec.md §6 item 3
// "values: list<{value_bytes, commit_certificate}>"). Unlike the
// in-process sync.ValueResponse (which already holds a decoded
// types.Value), this boundary type never assumes a concrete Value
// representation, matching spec.md §1's "core is parametric over ...
// value type".
type EncodedValue struct {
	Height    types.Height
	Round     types.Round
	ValueBytes []byte
	Cert      types.CommitCertificate
}

// ValueResponse answers a ValueRequest (spec.md §6 item 3).
type ValueResponse struct {
	Range  ValueRange
	Values []EncodedValue
}
