package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maestro-bft/maestro/driver"
	"github.com/maestro-bft/maestro/round"
	"github.com/maestro-bft/maestro/store"
	"github.com/maestro-bft/maestro/types"
)

// MsgKind is the sum type of external messages the runtime accepts
// (spec.md §4.6 "receives external messages (timeout elapsed, network
// message, host reply, sync reply)").
type MsgKind uint8

const (
	_ MsgKind = iota
	MsgStartHeight
	MsgVote
	MsgProposal
	MsgProposeValue
	MsgTimeoutElapsed
	MsgCommitCertificate
	MsgPolkaCertificate
)

// Msg is one runtime-granularity input.
type Msg struct {
	Kind MsgKind

	Height types.Height // MsgStartHeight

	Vote types.SignedVote // MsgVote

	Proposal types.SignedProposal // MsgProposal
	Validity types.Validity       // MsgProposal

	ProposeRound types.Round // MsgProposeValue
	ProposeValue types.Value // MsgProposeValue

	Timeout round.Timeout // MsgTimeoutElapsed

	CommitCert *types.CommitCertificate // MsgCommitCertificate
	PolkaCert  *types.PolkaCertificate  // MsgPolkaCertificate
}

// heightOf extracts the height a Msg pertains to, for the
// per-height pending queue (spec.md §4.6 "messages for past heights are
// dropped; messages for future heights are queued").
func (m Msg) heightOf() (types.Height, bool) {
	switch m.Kind {
	case MsgStartHeight:
		return m.Height, true
	case MsgVote:
		return m.Vote.Vote.Height, true
	case MsgProposal:
		return m.Proposal.Proposal.Height, true
	case MsgCommitCertificate:
		return m.CommitCert.Height, true
	case MsgPolkaCertificate:
		return m.PolkaCert.Height, true
	default:
		return 0, false
	}
}

// Runtime is the actor performing side effects around a Driver: signing,
// publishing, scheduling timeouts, and mediating between the driver and
// the host (spec.md §4.6).
type Runtime struct {
	cfg Config

	height        types.Height
	heightStarted time.Time
	vs            types.ValidatorSet
	d             *driver.Driver

	pending map[types.Height][]Msg

	cancelTimeouts []func()

	inbox chan Msg
	done  chan struct{}
}

// New validates opts and returns an unstarted Runtime.
func New(opts ...Opt) (*Runtime, error) {
	var cfg Config
	for _, o := range opts {
		if err := o(&cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Runtime{
		cfg:     cfg,
		pending: make(map[types.Height][]Msg),
		inbox:   make(chan Msg, 64),
		done:    make(chan struct{}),
	}, nil
}

// Send enqueues a message for the actor loop (or for synchronous
// handling via Handle in tests). It never blocks: the inbox is sized
// generously and a full inbox indicates a starved actor, which is a
// deployment bug rather than something to paper over with a blocking
// send.
func (rt *Runtime) Send(m Msg) {
	select {
	case rt.inbox <- m:
	default:
		rt.cfg.Log.Error("runtime inbox full, dropping message", "kind", m.Kind)
	}
}

// Run is the actor's main loop: a single goroutine reads the inbox and
// applies messages one at a time, matching SPEC_FULL.md's "Concurrency
// shape" (mirrors tmmirror/tmstate's kernel goroutines). It returns when
// ctx is canceled.
func (rt *Runtime) Run(ctx context.Context) {
	defer close(rt.done)
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-rt.inbox:
			if err := rt.Handle(ctx, m); err != nil {
				rt.cfg.Log.Error("runtime: handling message failed", "kind", m.Kind, "err", err)
			}
		}
	}
}

// Wait blocks until Run has returned.
func (rt *Runtime) Wait() { <-rt.done }

// Handle applies one message synchronously. It is exported so tests can
// drive the runtime deterministically without a goroutine, mirroring the
// teacher's kernel tests calling kernel methods directly rather than
// only through the actor loop.
func (rt *Runtime) Handle(ctx context.Context, m Msg) error {
	if m.Kind == MsgStartHeight {
		return rt.startHeight(ctx, m.Height)
	}

	if h, ok := m.heightOf(); ok {
		if h < rt.height {
			return nil // past height: drop
		}
		if h > rt.height || rt.d == nil {
			rt.pending[h] = append(rt.pending[h], m)
			return nil
		}
	}

	switch m.Kind {
	case MsgVote:
		if !rt.verifySignedVote(m.Vote) {
			rt.cfg.Log.Warn("runtime: dropping vote with invalid signature",
				"height", m.Vote.Vote.Height, "round", m.Vote.Vote.Round, "address", m.Vote.Vote.Address)
			return nil
		}
		return rt.dispatch(rt.d.Process(driver.Input{Kind: driver.InVote, Vote: m.Vote}))
	case MsgProposal:
		if !rt.verifySignedProposal(m.Proposal) {
			rt.cfg.Log.Warn("runtime: dropping proposal with invalid signature",
				"height", m.Proposal.Proposal.Height, "round", m.Proposal.Proposal.Round, "proposer", m.Proposal.Proposal.Proposer)
			return nil
		}
		return rt.dispatch(rt.d.Process(driver.Input{Kind: driver.InProposal, Proposal: m.Proposal, Validity: m.Validity}))
	case MsgProposeValue:
		return rt.dispatch(rt.d.Process(driver.Input{Kind: driver.InProposeValue, Round: m.ProposeRound, Value: m.ProposeValue}))
	case MsgTimeoutElapsed:
		return rt.dispatch(rt.d.Process(driver.Input{Kind: driver.InTimeoutElapsed, Timeout: m.Timeout}))
	case MsgCommitCertificate:
		return rt.dispatch(rt.d.Process(driver.Input{Kind: driver.InCommitCertificate, CommitCert: m.CommitCert}))
	case MsgPolkaCertificate:
		return rt.dispatch(rt.d.Process(driver.Input{Kind: driver.InPolkaCertificate, PolkaCert: m.PolkaCert}))
	}
	return nil
}

// startHeight implements spec.md §4.6's height lifecycle step 1.
func (rt *Runtime) startHeight(ctx context.Context, h types.Height) error {
	if rt.cfg.ConnectedPeers != nil {
		vsPrev, err := rt.cfg.ValSets.LoadValidatorSet(ctx, h)
		if err == nil && vsPrev.Len() > 0 && rt.cfg.ConnectedPeers() < vsPrev.Len()-1 {
			rt.pending[h] = append(rt.pending[h], Msg{Kind: MsgStartHeight, Height: h})
			return nil
		}
	}

	vs, err := rt.cfg.Host.GetValidatorSet(h)
	if err != nil {
		return fmt.Errorf("runtime: get validator set for height %d: %w", h, err)
	}
	if err := rt.cfg.ValSets.SaveValidatorSet(ctx, h, vs); err != nil {
		return err
	}

	rt.height = h
	rt.heightStarted = time.Now()
	rt.vs = vs
	rt.d = driver.New(h, vs, rt.cfg.Params, rt.cfg.Mode, rt.cfg.Self, rt.cfg.Selector)
	rt.cancelAllTimeouts()
	rt.cfg.Metrics.SetHeight(uint64(h))
	rt.cfg.Metrics.SetRound(0)

	if err := rt.replayWAL(ctx, h); err != nil {
		return err
	}

	proposer, _ := vs.Proposer(h, 0)
	if err := rt.dispatch(rt.d.Process(driver.Input{Kind: driver.InNewRound, Round: 0, Proposer: proposer.Address})); err != nil {
		return err
	}

	queued := rt.pending[h]
	delete(rt.pending, h)
	for _, qm := range queued {
		if qm.Kind == MsgStartHeight {
			continue
		}
		if err := rt.Handle(ctx, qm); err != nil {
			return err
		}
	}
	return nil
}

// replayWAL implements spec.md §9's supplemented "WAL & last-sent votes"
// requirement: before accepting new input, replay persisted
// but-unconfirmed entries so the driver reconstructs matching internal
// state and refuses to re-emit conflicting votes.
func (rt *Runtime) replayWAL(ctx context.Context, h types.Height) error {
	entries, err := rt.cfg.WAL.LoadWAL(ctx, h)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Vote != nil {
			if err := rt.dispatch(rt.d.Process(driver.Input{Kind: driver.InVote, Vote: *e.Vote})); err != nil {
				return err
			}
		}
		if e.Proposal != nil {
			if err := rt.dispatch(rt.d.Process(driver.Input{Kind: driver.InProposal, Proposal: *e.Proposal, Validity: types.Valid})); err != nil {
				return err
			}
		}
	}
	return nil
}

// dispatch translates driver outputs into side effects (spec.md §4.6's
// effect list) in order.
func (rt *Runtime) dispatch(outs []driver.Output, err error) error {
	if err != nil {
		return err
	}
	for _, o := range outs {
		if err := rt.applyOutput(o); err != nil {
			return err
		}
	}
	return nil
}

func (rt *Runtime) applyOutput(o driver.Output) error {
	ctx := context.Background()

	switch o.Kind {
	case driver.OutGetValue:
		if v, ready := rt.cfg.Host.GetValue(rt.height, o.Round); ready {
			return rt.dispatch(rt.d.Process(driver.Input{Kind: driver.InProposeValue, Round: o.Round, Value: v}))
		}
		rt.scheduleTimeout(o.Timeout)
		return nil

	case driver.OutScheduleTimeout:
		rt.scheduleTimeout(o.Timeout)
		return nil

	case driver.OutPropose:
		if rt.cfg.Signer == nil {
			return nil // non-signing (observer) node: nothing to propose
		}
		p := types.Proposal{Height: rt.height, Round: o.Round, Value: o.Value, PolRound: o.PolRound, Proposer: rt.cfg.Self}
		sig, err := rt.cfg.Signer.Sign(rt.cfg.Hash.ProposalSignBytes(p))
		if err != nil {
			return err
		}
		sp := types.SignedProposal{Proposal: p, Signature: sig}
		if err := rt.cfg.WAL.AppendWAL(ctx, store.WALEntry{Height: rt.height, Round: o.Round, Proposal: &sp}); err != nil {
			return err
		}
		rt.cfg.Gossip.PublishProposal(sp)
		rt.cfg.Metrics.ObserveProposal()
		return rt.dispatch(rt.d.Process(driver.Input{Kind: driver.InProposal, Proposal: sp, Validity: types.Valid}))

	case driver.OutVote:
		if rt.cfg.Signer == nil {
			return nil
		}
		sig, err := rt.cfg.Signer.Sign(rt.cfg.Hash.VoteSignBytes(*o.Vote))
		if err != nil {
			return err
		}
		sv := types.SignedVote{Vote: *o.Vote, Signature: sig}
		if err := rt.cfg.WAL.AppendWAL(ctx, store.WALEntry{Height: rt.height, Round: o.Vote.Round, Vote: &sv}); err != nil {
			return err
		}
		rt.cfg.Gossip.PublishVote(sv)
		rt.cfg.Metrics.ObserveVote(o.Vote.Type.String())
		return nil

	case driver.OutDecide:
		cert, ok := rt.d.BuildCommitCertificate(o.DecisionRound, o.Value.ID())
		if !ok {
			return errors.New("runtime: decided value lacks a matching certificate")
		}
		if err := rt.cfg.Decisions.SaveDecision(ctx, store.DecidedValue{
			Height: rt.height, Round: o.DecisionRound, Value: o.Value, Cert: cert,
		}); err != nil {
			return err
		}
		if err := rt.cfg.WAL.TruncateWAL(ctx, rt.height); err != nil {
			return err
		}
		rt.cfg.Host.DecidedOnValue(rt.height, o.DecisionRound, o.Value, cert.Votes)
		rt.cfg.Metrics.ObserveDecision(time.Since(rt.heightStarted).Seconds())
		voteEvidence, proposalEvidence := rt.d.Evidence()
		for i := 0; i < len(voteEvidence)+len(proposalEvidence); i++ {
			rt.cfg.Metrics.ObserveEquivocation()
		}
		rt.scheduleCommitTimeout()
		return nil

	case driver.OutRequestValue:
		// Left to the embedder: a real deployment resolves this against
		// a value cache or a sync.Transport fetch. Nothing to do at
		// this layer beyond surfacing it, since spec.md §1 excludes
		// transport implementation from scope.
		return nil
	}
	return nil
}

func (rt *Runtime) scheduleTimeout(t round.Timeout) {
	cancel := rt.cfg.Timers.Schedule(timeoutDuration(t.Kind), func() {
		rt.Send(Msg{Kind: MsgTimeoutElapsed, Height: rt.height, Timeout: t})
	})
	rt.cancelTimeouts = append(rt.cancelTimeouts, cancel)
}

// scheduleCommitTimeout implements spec.md §4.6 height-lifecycle step 3:
// once decided, a Commit timeout elapsing triggers MoveToHeight.
func (rt *Runtime) scheduleCommitTimeout() {
	h := rt.height
	cancel := rt.cfg.Timers.Schedule(timeoutDuration(round.TimeoutCommit), func() {
		rt.Send(Msg{Kind: MsgStartHeight, Height: h.Next()})
	})
	rt.cancelTimeouts = append(rt.cancelTimeouts, cancel)
}

// verifySignedVote implements spec.md §4.6 effect item 2,
// VerifySignature, for inbound votes. A nil Verify (no verifier
// configured, e.g. a single-process test) trusts every vote, matching
// Signer/Verify's documented optionality in Config.
func (rt *Runtime) verifySignedVote(sv types.SignedVote) bool {
	if rt.cfg.Verify == nil {
		return true
	}
	v, ok := rt.vs.ByAddress(sv.Vote.Address)
	if !ok {
		return false
	}
	return rt.cfg.Verify.Verify(v.PubKey, rt.cfg.Hash.VoteSignBytes(sv.Vote), sv.Signature)
}

// verifySignedProposal is verifySignedVote's counterpart for proposals.
func (rt *Runtime) verifySignedProposal(sp types.SignedProposal) bool {
	if rt.cfg.Verify == nil {
		return true
	}
	v, ok := rt.vs.ByAddress(sp.Proposal.Proposer)
	if !ok {
		return false
	}
	return rt.cfg.Verify.Verify(v.PubKey, rt.cfg.Hash.ProposalSignBytes(sp.Proposal), sp.Signature)
}

func (rt *Runtime) cancelAllTimeouts() {
	for _, c := range rt.cancelTimeouts {
		c()
	}
	rt.cancelTimeouts = nil
}

// timeoutDuration maps a timeout kind to a fixed duration that Timers
// receives; it does not vary with the round, and no Opt replaces it.
func timeoutDuration(kind round.TimeoutKind) TimeoutDuration {
	switch kind {
	case round.TimeoutPropose:
		return 3000
	case round.TimeoutPrevote:
		return 1000
	case round.TimeoutPrecommit:
		return 1000
	case round.TimeoutCommit:
		return 2000
	default:
		return 1000
	}
}
