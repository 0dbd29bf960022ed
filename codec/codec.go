// Package codec defines the (de)serialization contracts for wire
// messages, grounded on the teacher's tmcodec package: a Marshaler/
// Unmarshaler pair combined into a MarshalCodec interface, kept
// separate from the wire types themselves so multiple encodings (this
// package ships JSON, mirroring tmcodec/tmjson) can coexist.
package codec

import (
	"github.com/maestro-bft/maestro/types"
	"github.com/maestro-bft/maestro/wire"
)

// ValueCodec converts between the opaque types.Value the core operates
// on and the raw bytes spec.md §6 puts on the wire. The core is
// parametric over the value type (spec.md §1), so this cannot be baked
// into MarshalCodec itself; a host supplies one alongside its own Value
// implementation.
type ValueCodec interface {
	EncodeValue(types.Value) ([]byte, error)
	DecodeValue([]byte) (types.Value, error)
}

// Marshaler serializes every wire type to bytes.
type Marshaler interface {
	MarshalConsensusMessage(wire.ConsensusMessage) ([]byte, error)
	MarshalProposalPart(wire.ProposalPart) ([]byte, error)
	MarshalStatus(wire.Status) ([]byte, error)
	MarshalValueRequest(wire.ValueRequest) ([]byte, error)
	MarshalValueResponse(wire.ValueResponse) ([]byte, error)
}

// Unmarshaler deserializes every wire type from bytes.
type Unmarshaler interface {
	UnmarshalConsensusMessage([]byte, *wire.ConsensusMessage) error
	UnmarshalProposalPart([]byte, *wire.ProposalPart) error
	UnmarshalStatus([]byte, *wire.Status) error
	UnmarshalValueRequest([]byte, *wire.ValueRequest) error
	UnmarshalValueResponse([]byte, *wire.ValueResponse) error
}

// MarshalCodec is the full (de)serialization contract a transport
// implementation is built against (mirrors tmcodec.MarshalCodec).
type MarshalCodec interface {
	Marshaler
	Unmarshaler
}
