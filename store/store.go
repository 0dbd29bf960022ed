// Package store defines the persisted-state contracts the runtime needs
// (spec.md §4.6 WAL & last-sent votes, §6 decided-value history) plus an
// in-memory implementation for tests and single-process deployments.
//
// Grounded on the teacher's tmstore interfaces (ActionStore,
// FinalizationStore, HeaderStore): context-qualified methods, a typed
// not-found error rather than (zero, false), one interface per concern.
package store

import (
	"context"
	"errors"

	"github.com/maestro-bft/maestro/types"
)

// ErrNotFound is returned by a Load* method when nothing is stored for
// the requested key. Callers compare with errors.Is.
var ErrNotFound = errors.New("store: not found")

// WALEntry is one signed vote or proposal persisted before publishing,
// so it can be replayed to the driver after a restart (spec.md §9
// "WAL & last-sent votes", supplemented from malachite's wal.rs).
type WALEntry struct {
	Height   types.Height
	Round    types.Round
	Vote     *types.SignedVote
	Proposal *types.SignedProposal
}

// WALStore persists consensus messages this node signed, before they
// are published, and allows replaying them on restart (spec.md §4.6).
type WALStore interface {
	// AppendWAL persists one entry. Implementations must fsync (or the
	// equivalent durability guarantee) before returning, since the
	// runtime only publishes after AppendWAL succeeds.
	AppendWAL(ctx context.Context, e WALEntry) error

	// LoadWAL returns every entry persisted for a height, in append
	// order, for replay on restart.
	LoadWAL(ctx context.Context, h types.Height) ([]WALEntry, error)

	// TruncateWAL drops WAL entries at or below h once the height is
	// decided and no longer needs replay.
	TruncateWAL(ctx context.Context, h types.Height) error
}

// DecidedValue is a height's outcome, stored with the certificate that
// justified the decision (spec.md §4.6 item 7, §4.7 sync ValueResponse).
type DecidedValue struct {
	Height types.Height
	Round  types.Round
	Value  types.Value
	Cert   types.CommitCertificate
}

// DecisionStore records decided heights and serves the sync subsystem's
// range queries (spec.md §4.7).
type DecisionStore interface {
	SaveDecision(ctx context.Context, d DecidedValue) error

	// LoadDecision returns ErrNotFound if h has not been decided.
	LoadDecision(ctx context.Context, h types.Height) (DecidedValue, error)

	// TipHeight returns the highest height saved, or 0 if none.
	TipHeight(ctx context.Context) (types.Height, error)

	// HistoryMinHeight returns the lowest height still retained, used
	// to answer sync Status announcements (spec.md §4.7).
	HistoryMinHeight(ctx context.Context) (types.Height, error)
}

// ValidatorSetStore resolves a height's validator set, queried by the
// runtime before starting a height (spec.md §4.6 item 6).
type ValidatorSetStore interface {
	SaveValidatorSet(ctx context.Context, h types.Height, vs types.ValidatorSet) error
	LoadValidatorSet(ctx context.Context, h types.Height) (types.ValidatorSet, error)
}
