package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/maestro-bft/maestro/types"
)

// ValueCodec converts between the opaque types.Value the core operates on
// and the bytes a file-backed store persists it as. Proposal.Value is an
// interface (spec.md §1 "core is parametric over the value type"), so a
// generic encoder cannot decode it back without help from whatever
// concrete Value an embedder uses; this is the same shape as
// codec.ValueCodec, duplicated here rather than imported so that store
// does not have to depend on the wire/codec packages for one interface.
type ValueCodec interface {
	EncodeValue(types.Value) ([]byte, error)
	DecodeValue([]byte) (types.Value, error)
}

// FileWALStore is a JSON-lines, append-only WALStore backed by a single
// file, for deployments (and the bundled demo CLI) that need the WAL to
// survive a process restart. MemStore covers everything in-process;
// FileWALStore exists purely for the "survives past `start` exiting"
// case MemStore can't, which is also the only reason a WAL is worth
// inspecting from a second, later invocation (see cmd/maestro's
// inspect-wal subcommand).
//
// The on-disk format is one JSON object per line, in append order:
//
//	{"Height":1,"Round":0,"Vote":{...}}
//	{"Height":1,"Round":0,"Proposal":{...,"ValueBytes":"..."}}
//
// There is no concrete on-disk WAL format to follow here (the format is
// this repo's own design choice, not carried over from anywhere), so it
// is kept as simple as possible: append-only JSON lines, one fsync per
// AppendWAL, replayed by re-reading the whole file and filtering by
// height. A production deployment expecting a large WAL would want
// per-height segment files or periodic compaction; this is sized for
// the bundled demo and for tests, not for years of chain history.
type FileWALStore struct {
	mu    sync.Mutex
	path  string
	f     *os.File
	codec ValueCodec
}

// NewFileWALStore opens (creating if necessary) the WAL file at path for
// appending, and returns a FileWALStore backed by it. vc encodes and
// decodes the application's Value type for entries carrying a proposal;
// it is never consulted for vote-only entries.
func NewFileWALStore(path string, vc ValueCodec) (*FileWALStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("store: opening WAL file %q: %w", path, err)
	}
	return &FileWALStore{path: path, f: f, codec: vc}, nil
}

// Close releases the underlying file handle.
func (s *FileWALStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// walProposal is types.SignedProposal with Value replaced by its encoded
// bytes, since the interface itself cannot round-trip through encoding/json
// without a concrete type to land in.
type walProposal struct {
	Height     types.Height
	Round      types.Round
	ValueBytes []byte
	PolRound   types.Round
	Proposer   types.Address
	Signature  types.Signature
}

type walLine struct {
	Height   types.Height
	Round    types.Round
	Vote     *types.SignedVote `json:",omitempty"`
	Proposal *walProposal      `json:",omitempty"`
}

func (s *FileWALStore) toLine(e WALEntry) (walLine, error) {
	wl := walLine{Height: e.Height, Round: e.Round, Vote: e.Vote}
	if e.Proposal != nil {
		p := e.Proposal.Proposal
		vb, err := s.codec.EncodeValue(p.Value)
		if err != nil {
			return walLine{}, fmt.Errorf("store: encoding proposal value: %w", err)
		}
		wl.Proposal = &walProposal{
			Height: p.Height, Round: p.Round, ValueBytes: vb,
			PolRound: p.PolRound, Proposer: p.Proposer,
			Signature: e.Proposal.Signature,
		}
	}
	return wl, nil
}

func (s *FileWALStore) fromLine(wl walLine) (WALEntry, error) {
	e := WALEntry{Height: wl.Height, Round: wl.Round, Vote: wl.Vote}
	if wl.Proposal != nil {
		v, err := s.codec.DecodeValue(wl.Proposal.ValueBytes)
		if err != nil {
			return WALEntry{}, fmt.Errorf("store: decoding proposal value: %w", err)
		}
		e.Proposal = &types.SignedProposal{
			Proposal: types.Proposal{
				Height: wl.Proposal.Height, Round: wl.Proposal.Round,
				Value: v, PolRound: wl.Proposal.PolRound, Proposer: wl.Proposal.Proposer,
			},
			Signature: wl.Proposal.Signature,
		}
	}
	return e, nil
}

func (s *FileWALStore) AppendWAL(_ context.Context, e WALEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wl, err := s.toLine(e)
	if err != nil {
		return err
	}
	b, err := json.Marshal(wl)
	if err != nil {
		return fmt.Errorf("store: encoding WAL entry: %w", err)
	}
	b = append(b, '\n')

	if _, err := s.f.Write(b); err != nil {
		return fmt.Errorf("store: writing WAL entry: %w", err)
	}
	// Runtime only publishes after AppendWAL succeeds (store.go's
	// WALStore doc comment), so this must durably hit disk first.
	return s.f.Sync()
}

func (s *FileWALStore) LoadWAL(_ context.Context, h types.Height) ([]WALEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readAll()
	if err != nil {
		return nil, err
	}

	out := make([]WALEntry, 0, len(entries))
	for _, e := range entries {
		if e.Height == h {
			out = append(out, e)
		}
	}
	return out, nil
}

// LoadAll returns every entry in the file, across all heights, in
// append order. It exists for tooling (cmd/maestro's inspect-wal) that
// wants to see the whole file rather than one height at a time; the
// WALStore interface itself never needs this, since the runtime only
// ever replays one height.
func (s *FileWALStore) LoadAll(_ context.Context) ([]WALEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll()
}

// TruncateWAL rewrites the file, dropping every entry at or below h.
// The file grows until a truncation happens; callers should call this
// after every decided height to bound it, per WALStore's doc comment.
func (s *FileWALStore) TruncateWAL(_ context.Context, h types.Height) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readAll()
	if err != nil {
		return err
	}

	kept := entries[:0]
	for _, e := range entries {
		if e.Height > h {
			kept = append(kept, e)
		}
	}

	if err := s.f.Close(); err != nil {
		return fmt.Errorf("store: closing WAL file before truncate: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("store: reopening WAL file for truncate: %w", err)
	}
	s.f = f

	for _, e := range kept {
		wl, err := s.toLine(e)
		if err != nil {
			return err
		}
		b, err := json.Marshal(wl)
		if err != nil {
			return fmt.Errorf("store: re-encoding WAL entry during truncate: %w", err)
		}
		b = append(b, '\n')
		if _, err := s.f.Write(b); err != nil {
			return fmt.Errorf("store: rewriting WAL entry during truncate: %w", err)
		}
	}
	if _, err := s.f.Seek(0, 2); err != nil {
		return fmt.Errorf("store: seeking WAL file to append position: %w", err)
	}
	return s.f.Sync()
}

// readAll scans the whole file from the start and returns every entry in
// append order. Callers must hold s.mu.
func (s *FileWALStore) readAll() ([]WALEntry, error) {
	if _, err := s.f.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("store: seeking WAL file: %w", err)
	}

	var out []WALEntry
	sc := bufio.NewScanner(s.f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var wl walLine
		if err := json.Unmarshal(line, &wl); err != nil {
			return nil, fmt.Errorf("store: decoding WAL line: %w", err)
		}
		e, err := s.fromLine(wl)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("store: scanning WAL file: %w", err)
	}

	if _, err := s.f.Seek(0, 2); err != nil {
		return nil, fmt.Errorf("store: seeking WAL file to end: %w", err)
	}
	return out, nil
}
