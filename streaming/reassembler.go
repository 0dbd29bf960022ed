// Package streaming implements spec.md §9's supplemented
// "proposal-and-parts decoupling" feature: reassembling a proposal
// value out of a stream of wire.ProposalPart messages (spec.md §6.2
// item 2, §9 "Proposal streaming: large values are chunked into parts
// streamed over a separate channel; reassembly is keyed by (peer,
// stream-id). Implement as a bounded map with eviction on completion or
// staleness"), plus an optional erasure-coded transport for the
// PartsOnly value_payload mode (SPEC_FULL.md §B).
//
// Grounded on malachite's streamed `ProposalPart`/`ProposalAndParts`
// design (referenced via `original_source/_INDEX.md`'s `engine/src/
// sync.rs` and the driver's proposal handling) for the Init/Data/Fin
// shape, and on gordian's gturbine/gtshred reassembly-by-stream-id
// pattern for the bounded-map-with-eviction strategy.
package streaming

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maestro-bft/maestro/signing"
	"github.com/maestro-bft/maestro/types"
	"github.com/maestro-bft/maestro/wire"
)

// StreamKey identifies one proposal-part stream: a peer can run several
// concurrent streams (e.g. across rounds), so reassembly is keyed by
// (peer, stream id) as spec.md §9 specifies.
type StreamKey struct {
	Peer     string
	StreamID uuid.UUID
}

// Assembled is a fully reassembled proposal value, ready to feed into
// the proposal keeper as a types.Proposal's Value once the embedder
// decodes ValueBytes.
type Assembled struct {
	Peer      string
	Init      wire.ProposalPartInit
	ValueBytes []byte
	ValueId   types.ValueId
	Signature types.Signature
}

// ErrValueIdMismatch is returned when a Fin part's claimed value id does
// not match the hash of the Data parts actually received (spec.md §6
// item 2 "the hash of all Data parts equals the value id").
type ErrValueIdMismatch struct {
	Want, Got types.ValueId
}

func (e ErrValueIdMismatch) Error() string {
	return fmt.Sprintf("streaming: value id mismatch: fin claims %q, data hashes to %q", e.Want, e.Got)
}

type pendingStream struct {
	init      *wire.ProposalPartInit
	fin       *wire.ProposalPartFin
	finSeq    uint64
	dataBySeq map[uint64][]byte
	touched   time.Time
}

// Reassembler accumulates ProposalPart messages per stream and emits an
// Assembled value once Init, every intermediate Data part, and Fin have
// all arrived (spec.md §6 item 2 "Init and Fin parts are mandatory").
type Reassembler struct {
	mu    sync.Mutex
	hash  signing.HashScheme
	max   int
	stale time.Duration

	streams map[StreamKey]*pendingStream
}

// NewReassembler returns a Reassembler bounded to at most maxPending
// concurrent streams (oldest evicted first) and treating a stream
// untouched for staleAfter as abandoned.
func NewReassembler(hash signing.HashScheme, maxPending int, staleAfter time.Duration) *Reassembler {
	return &Reassembler{
		hash:    hash,
		max:     maxPending,
		stale:   staleAfter,
		streams: make(map[StreamKey]*pendingStream),
	}
}

// AddPart folds in one part of a stream. It returns a non-nil Assembled
// once the stream completes; until then it returns (nil, nil) to mean
// "still waiting on more parts".
func (r *Reassembler) AddPart(peer string, p wire.ProposalPart) (*Assembled, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := StreamKey{Peer: peer, StreamID: p.StreamID}
	ps, ok := r.streams[key]
	if !ok {
		ps = &pendingStream{dataBySeq: make(map[uint64][]byte), touched: time.Now()}
		r.streams[key] = ps
		r.evictOverCapacityLocked()
	}
	ps.touched = time.Now()

	switch p.Kind {
	case wire.PartInit:
		ps.init = p.Init
	case wire.PartData:
		ps.dataBySeq[p.Sequence] = p.Data
	case wire.PartFin:
		ps.fin = p.Fin
		ps.finSeq = p.Sequence
	}

	if ps.init == nil || ps.fin == nil {
		return nil, nil
	}

	var buf []byte
	for seq := uint64(1); seq < ps.finSeq; seq++ {
		d, ok := ps.dataBySeq[seq]
		if !ok {
			return nil, nil // a data part is still missing; keep waiting
		}
		buf = append(buf, d...)
	}

	got := r.hash.ValueId(buf)
	if got != ps.fin.ValueId {
		delete(r.streams, key)
		return nil, ErrValueIdMismatch{Want: ps.fin.ValueId, Got: got}
	}

	delete(r.streams, key)
	return &Assembled{
		Peer:       peer,
		Init:       *ps.init,
		ValueBytes: buf,
		ValueId:    got,
		Signature:  ps.fin.Signature,
	}, nil
}

// evictOverCapacityLocked drops the least-recently-touched stream(s)
// until the pending count is within r.max. Call with r.mu held.
func (r *Reassembler) evictOverCapacityLocked() {
	if r.max <= 0 {
		return
	}
	for len(r.streams) > r.max {
		var oldestKey StreamKey
		var oldest time.Time
		first := true
		for k, ps := range r.streams {
			if first || ps.touched.Before(oldest) {
				oldestKey, oldest, first = k, ps.touched, false
			}
		}
		delete(r.streams, oldestKey)
	}
}

// Sweep evicts every stream untouched for longer than staleAfter,
// returning the keys it dropped (spec.md §9 "eviction on completion or
// staleness"). Callers invoke this periodically, e.g. from the same
// actor loop that owns the Reassembler.
func (r *Reassembler) Sweep(now time.Time) []StreamKey {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []StreamKey
	for k, ps := range r.streams {
		if now.Sub(ps.touched) > r.stale {
			evicted = append(evicted, k)
			delete(r.streams, k)
		}
	}
	return evicted
}

// Pending reports how many streams are currently buffered, for metrics.
func (r *Reassembler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}
