package codec

import (
	"encoding/json"
	"fmt"

	"github.com/maestro-bft/maestro/wire"
)

// JSONCodec implements MarshalCodec using encoding/json. It favors
// readability and debuggability over size and speed, exactly the
// tradeoff tmcodec/tmjson's doc comment describes ("You can certainly
// get better performance with other serialization methods").
type JSONCodec struct{}

var _ MarshalCodec = JSONCodec{}

func (JSONCodec) MarshalConsensusMessage(m wire.ConsensusMessage) ([]byte, error) {
	if (m.Vote == nil) == (m.Proposal == nil) {
		return nil, fmt.Errorf("codec: exactly one of Vote or Proposal must be set")
	}
	return json.Marshal(m)
}

func (JSONCodec) UnmarshalConsensusMessage(b []byte, m *wire.ConsensusMessage) error {
	return json.Unmarshal(b, m)
}

func (JSONCodec) MarshalProposalPart(p wire.ProposalPart) ([]byte, error) {
	return json.Marshal(p)
}

func (JSONCodec) UnmarshalProposalPart(b []byte, p *wire.ProposalPart) error {
	return json.Unmarshal(b, p)
}

func (JSONCodec) MarshalStatus(s wire.Status) ([]byte, error) {
	return json.Marshal(s)
}

func (JSONCodec) UnmarshalStatus(b []byte, s *wire.Status) error {
	return json.Unmarshal(b, s)
}

func (JSONCodec) MarshalValueRequest(r wire.ValueRequest) ([]byte, error) {
	return json.Marshal(r)
}

func (JSONCodec) UnmarshalValueRequest(b []byte, r *wire.ValueRequest) error {
	return json.Unmarshal(b, r)
}

func (JSONCodec) MarshalValueResponse(r wire.ValueResponse) ([]byte, error) {
	return json.Marshal(r)
}

func (JSONCodec) UnmarshalValueResponse(b []byte, r *wire.ValueResponse) error {
	return json.Unmarshal(b, r)
}
