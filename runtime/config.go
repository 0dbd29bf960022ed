// Package runtime implements spec.md §4.6: the Consensus Runtime, the
// single component that performs side effects (signing, publishing,
// timers, value requests) around a per-height Driver.
//
// Grounded on the teacher's tmengine.Engine: a functional-options
// constructor (tmengine.Opt / tmengine.New), a validateSettings pass
// that accumulates every missing-required-option error via errors.Join
// instead of failing on the first, and height-lifecycle methods
// (maybeInitializeChain-style sequencing) driving a per-height
// sub-component (tmstate's state machine here takes the place this
// repo's Driver occupies).
package runtime

import (
	"errors"
	"log/slog"

	"github.com/maestro-bft/maestro/metrics"
	"github.com/maestro-bft/maestro/signing"
	"github.com/maestro-bft/maestro/store"
	"github.com/maestro-bft/maestro/types"
	"github.com/maestro-bft/maestro/votekeeper"
)

// Host is the set of callbacks the embedding application supplies,
// mirroring spec.md §4.6's effect list items 5-8 (GetValue,
// GetValidatorSet, DecidedOnValue, ExtendVote/VerifyVoteExtension).
type Host interface {
	// GetValue asks the host to build a value to propose at
	// (height, round). The bool return indicates the value is ready
	// synchronously; hosts needing async construction return false and
	// later deliver the value from their own goroutine with Runtime.Send
	// and a MsgProposeValue message.
	GetValue(h types.Height, r types.Round) (types.Value, bool)

	// GetValidatorSet is queried before starting a new height
	// (spec.md §4.6 item 6).
	GetValidatorSet(h types.Height) (types.ValidatorSet, error)

	// DecidedOnValue is invoked exactly once per decided height
	// (spec.md §4.6 item 7).
	DecidedOnValue(h types.Height, r types.Round, v types.Value, commits []types.SignedVote)
}

// Gossip is the publish/subscribe surface the runtime broadcasts signed
// consensus messages over (spec.md §4.6 item 3). It is an interface on
// purpose: spec.md §1 excludes transport implementation from scope,
// exactly as the teacher's tmgossip.Strategy is transport-agnostic and
// tmp2p is a separate, swappable module (see SPEC_FULL.md §B "Dropped
// teacher dependencies").
type Gossip interface {
	PublishVote(types.SignedVote)
	PublishProposal(types.SignedProposal)
}

// Timers abstracts scheduling so tests can use a virtual clock instead
// of the wall clock, mirroring tmstate.RoundTimer /
// tmstate.NewStandardRoundTimer(ctx, TimeoutStrategy).
type Timers interface {
	// Schedule arranges for fire to be invoked once, no sooner than d
	// after this call; it returns a cancellation function.
	Schedule(d TimeoutDuration, fire func()) (cancel func())
}

// TimeoutDuration is a thin alias kept distinct from time.Duration so
// the Timers implementation, not this package, decides its units; the
// values themselves are fixed per timeout kind by timeoutDuration.
type TimeoutDuration = int64

// Config accumulates everything an Opt may set; Runtime copies what it
// needs out of it once validation passes.
type Config struct {
	Log    *slog.Logger
	Signer signing.Signer
	Hash   signing.HashScheme
	Verify signing.Verifier

	Gossip Gossip
	Host   Host
	Timers Timers

	WAL        store.WALStore
	Decisions  store.DecisionStore
	ValSets    store.ValidatorSetStore

	Params   types.ThresholdParams
	Mode     votekeeper.Mode
	Self     types.Address
	Selector types.ProposerSelector

	// ConnectedPeers reports the connected-peer count, checked before a
	// height may start (spec.md §4.6 "consensus for a height is allowed
	// to start only once the number of connected peers reaches
	// validator_set_size - 1"). nil disables the check, useful for
	// single-process tests.
	ConnectedPeers func() int

	// Metrics is optional; a nil *metrics.Metrics is a safe no-op.
	Metrics *metrics.Metrics
}

// Opt configures a Runtime at construction (spec.md §4.6, mirrors
// tmengine.Opt func(*Engine, *tmstate.StateMachineConfig) error).
type Opt func(*Config) error

func WithLogger(log *slog.Logger) Opt {
	return func(c *Config) error { c.Log = log; return nil }
}

func WithSigner(s signing.Signer) Opt {
	return func(c *Config) error { c.Signer = s; return nil }
}

func WithHashScheme(h signing.HashScheme) Opt {
	return func(c *Config) error { c.Hash = h; return nil }
}

func WithVerifier(v signing.Verifier) Opt {
	return func(c *Config) error { c.Verify = v; return nil }
}

func WithGossip(g Gossip) Opt {
	return func(c *Config) error { c.Gossip = g; return nil }
}

func WithHost(h Host) Opt {
	return func(c *Config) error { c.Host = h; return nil }
}

func WithTimers(t Timers) Opt {
	return func(c *Config) error { c.Timers = t; return nil }
}

func WithWAL(w store.WALStore) Opt {
	return func(c *Config) error { c.WAL = w; return nil }
}

func WithDecisionStore(d store.DecisionStore) Opt {
	return func(c *Config) error { c.Decisions = d; return nil }
}

func WithValidatorSetStore(v store.ValidatorSetStore) Opt {
	return func(c *Config) error { c.ValSets = v; return nil }
}

func WithThresholdParams(p types.ThresholdParams) Opt {
	return func(c *Config) error { c.Params = p; return nil }
}

func WithMode(m votekeeper.Mode) Opt {
	return func(c *Config) error { c.Mode = m; return nil }
}

func WithSelf(a types.Address) Opt {
	return func(c *Config) error { c.Self = a; return nil }
}

func WithProposerSelector(s types.ProposerSelector) Opt {
	return func(c *Config) error { c.Selector = s; return nil }
}

func WithConnectedPeers(f func() int) Opt {
	return func(c *Config) error { c.ConnectedPeers = f; return nil }
}

func WithMetrics(m *metrics.Metrics) Opt {
	return func(c *Config) error { c.Metrics = m; return nil }
}

// validate joins every missing-required-option error together, mirroring
// tmengine.Engine.validateSettings's "report everything at once" style.
func (c *Config) validate() error {
	var err error
	if c.Log == nil {
		err = errors.Join(err, errors.New("no logger set (use runtime.WithLogger)"))
	}
	if c.Hash == nil {
		err = errors.Join(err, errors.New("no hash scheme set (use runtime.WithHashScheme)"))
	}
	if c.Gossip == nil {
		err = errors.Join(err, errors.New("no gossip set (use runtime.WithGossip)"))
	}
	if c.Host == nil {
		err = errors.Join(err, errors.New("no host set (use runtime.WithHost)"))
	}
	if c.Timers == nil {
		err = errors.Join(err, errors.New("no timers set (use runtime.WithTimers)"))
	}
	if c.WAL == nil {
		err = errors.Join(err, errors.New("no WAL store set (use runtime.WithWAL)"))
	}
	if c.Decisions == nil {
		err = errors.Join(err, errors.New("no decision store set (use runtime.WithDecisionStore)"))
	}
	if c.ValSets == nil {
		err = errors.Join(err, errors.New("no validator set store set (use runtime.WithValidatorSetStore)"))
	}
	if c.Self == "" {
		err = errors.Join(err, errors.New("no self address set (use runtime.WithSelf)"))
	}
	if c.Params.Quorum == (types.Ratio{}) && c.Params.Certificate == (types.Ratio{}) {
		err = errors.Join(err, errors.New("no threshold params set (use runtime.WithThresholdParams)"))
	}
	return err
}
