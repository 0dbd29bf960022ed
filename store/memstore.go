package store

import (
	"context"
	"sync"

	"github.com/maestro-bft/maestro/types"
)

// MemStore is an in-memory implementation of WALStore, DecisionStore and
// ValidatorSetStore, intended for tests and the bundled demo CLI
// (mirrors the teacher's pattern of shipping a *test or in-memory
// counterpart alongside every store interface, e.g.
// tmstoretest/memstore or gcosmos's in-memory stores).
type MemStore struct {
	mu sync.Mutex

	wal map[types.Height][]WALEntry

	decisions map[types.Height]DecidedValue
	tip       types.Height
	minHeight types.Height

	valSets map[types.Height]types.ValidatorSet
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		wal:       make(map[types.Height][]WALEntry),
		decisions: make(map[types.Height]DecidedValue),
		valSets:   make(map[types.Height]types.ValidatorSet),
	}
}

func (m *MemStore) AppendWAL(_ context.Context, e WALEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wal[e.Height] = append(m.wal[e.Height], e)
	return nil
}

func (m *MemStore) LoadWAL(_ context.Context, h types.Height) ([]WALEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.wal[h]
	out := make([]WALEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (m *MemStore) TruncateWAL(_ context.Context, h types.Height) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for height := range m.wal {
		if height <= h {
			delete(m.wal, height)
		}
	}
	return nil
}

func (m *MemStore) SaveDecision(_ context.Context, d DecidedValue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions[d.Height] = d
	if d.Height > m.tip {
		m.tip = d.Height
	}
	if m.minHeight == 0 || d.Height < m.minHeight {
		m.minHeight = d.Height
	}
	return nil
}

func (m *MemStore) LoadDecision(_ context.Context, h types.Height) (DecidedValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.decisions[h]
	if !ok {
		return DecidedValue{}, ErrNotFound
	}
	return d, nil
}

func (m *MemStore) TipHeight(_ context.Context) (types.Height, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tip, nil
}

func (m *MemStore) HistoryMinHeight(_ context.Context) (types.Height, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.minHeight, nil
}

func (m *MemStore) SaveValidatorSet(_ context.Context, h types.Height, vs types.ValidatorSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.valSets[h] = vs
	return nil
}

func (m *MemStore) LoadValidatorSet(_ context.Context, h types.Height) (types.ValidatorSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vs, ok := m.valSets[h]
	if !ok {
		return types.ValidatorSet{}, ErrNotFound
	}
	return vs, nil
}
