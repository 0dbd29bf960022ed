package streaming

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// ErrIncompleteSet is returned by ErasureReconstructor.AddShard when a shard
// was accepted but is not yet sufficient to reconstruct the value,
// grounded on gordian's gerasure.ErrIncompleteSet (gerasure/coding.go),
// adapted here without that package's generic Encoder/Reconstructor
// interfaces since this repo has only one erasure backend to wire.
var ErrIncompleteSet = errors.New("streaming: insufficient shards received to reconstruct value")

// ErasureEncoder splits a proposal value into data and parity shards for
// the PartsOnly value_payload mode (SPEC_FULL.md §B), adapted from
// gordian's gerasure/gereedsolomon.Encoder.
type ErasureEncoder struct {
	rs reedsolomon.Encoder
}

// NewErasureEncoder returns an Encoder producing dataShards data shards
// plus parityShards parity shards per value.
func NewErasureEncoder(dataShards, parityShards int) (*ErasureEncoder, error) {
	if dataShards <= 0 {
		return nil, fmt.Errorf("streaming: data shards must be > 0")
	}
	if parityShards <= 0 {
		return nil, fmt.Errorf("streaming: parity shards must be > 0")
	}
	rs, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, fmt.Errorf("streaming: new reed-solomon encoder: %w", err)
	}
	return &ErasureEncoder{rs: rs}, nil
}

// Encode splits value into data shards and computes parity shards over
// them. Each returned shard becomes the Data payload of one
// wire.ProposalPart.
func (e *ErasureEncoder) Encode(value []byte) ([][]byte, error) {
	shards, err := e.rs.Split(value)
	if err != nil {
		return nil, fmt.Errorf("streaming: split value into shards: %w", err)
	}
	if err := e.rs.Encode(shards); err != nil {
		return nil, fmt.Errorf("streaming: encode parity shards: %w", err)
	}
	return shards, nil
}

// ErasureReconstructor rebuilds a proposal value from any sufficient
// subset of its data/parity shards, adapted from gordian's
// gerasure/gereedsolomon.Reconstructor.
type ErasureReconstructor struct {
	rs        reedsolomon.Encoder
	shards    [][]byte
	shardSize int
}

// NewErasureReconstructor prepares a Reconstructor for a value encoded
// with the given shard counts and per-shard size (discovered out of
// band, typically from the stream's Init part).
func NewErasureReconstructor(dataShards, parityShards, shardSize int) (*ErasureReconstructor, error) {
	if dataShards <= 0 {
		return nil, fmt.Errorf("streaming: data shards must be > 0")
	}
	if parityShards <= 0 {
		return nil, fmt.Errorf("streaming: parity shards must be > 0")
	}
	rs, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, fmt.Errorf("streaming: new reed-solomon reconstructor: %w", err)
	}
	shards := make([][]byte, dataShards+parityShards)
	for i := range shards {
		shards[i] = nil
	}
	return &ErasureReconstructor{rs: rs, shards: shards, shardSize: shardSize}, nil
}

// AddShard folds in shard idx. It returns ErrIncompleteSet until enough
// shards have been seen to reconstruct the original value.
func (r *ErasureReconstructor) AddShard(idx int, shard []byte) error {
	if len(shard) != r.shardSize {
		return fmt.Errorf("streaming: shard %d has size %d, want %d", idx, len(shard), r.shardSize)
	}
	r.shards[idx] = shard

	if err := r.rs.ReconstructData(r.shards); err != nil {
		if errors.Is(err, reedsolomon.ErrTooFewShards) {
			return ErrIncompleteSet
		}
		return fmt.Errorf("streaming: reconstruct data shards: %w", err)
	}
	return nil
}

// Data returns the reconstructed value, truncated to dataSize (the
// final data shard may be zero-padded).
func (r *ErasureReconstructor) Data(dataSize int) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.rs.Join(&buf, r.shards, dataSize); err != nil {
		return nil, fmt.Errorf("streaming: join reconstructed shards: %w", err)
	}
	return buf.Bytes(), nil
}
