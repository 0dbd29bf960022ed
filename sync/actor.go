package sync

import (
	"context"
	"time"

	"github.com/maestro-bft/maestro/types"
)

// MsgKind is the sum type of inputs the sync actor accepts (spec.md
// §4.7's observable protocol plus host replies), grounded on malachite
// `core-sync/src/handle.rs`'s `Input<Ctx>` enum.
type MsgKind uint8

const (
	_ MsgKind = iota
	MsgTick
	MsgStatus
	MsgStartedHeight
	MsgDecided
	MsgValueRequestIn
	MsgValueResponseIn
	MsgRequestTimedOut
)

// Msg is one sync-actor-granularity input.
type Msg struct {
	Kind MsgKind

	PeerStatus Status // MsgStatus

	Height types.Height // MsgStartedHeight, MsgDecided

	Peer     PeerID       // MsgValueRequestIn, MsgValueResponseIn, MsgRequestTimedOut
	Request  ValueRequest // MsgValueRequestIn
	Response ValueResponse // MsgValueResponseIn
	Timeout  ValueRange    // MsgRequestTimedOut
}

type peerState struct {
	status Status
}

type pendingRequest struct {
	peer   PeerID
	rng    ValueRange
	sentAt time.Time
	cancel func()
}

// Sync is the actor driving spec.md §4.7: broadcasting status, issuing
// value-range requests to catch up a lagging node, answering peers'
// requests from the local decision history, and scoring peers on the
// outcome of each exchange.
type Sync struct {
	cfg Config

	started    bool
	tip        types.Height
	syncHeight types.Height
	historyMin types.Height

	peers   map[PeerID]*peerState
	pending map[types.Height]pendingRequest // keyed by range start

	cancelStatus func()

	inbox chan Msg
	done  chan struct{}
}

// New validates opts and returns an unstarted Sync actor.
func New(opts ...Opt) (*Sync, error) {
	var cfg Config
	for _, o := range opts {
		if err := o(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.Scorer == nil {
		cfg.Scorer = NewScorer()
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 1
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Sync{
		cfg:     cfg,
		peers:   make(map[PeerID]*peerState),
		pending: make(map[types.Height]pendingRequest),
		inbox:   make(chan Msg, 64),
		done:    make(chan struct{}),
	}, nil
}

// Send enqueues a message for the actor loop without blocking.
func (s *Sync) Send(m Msg) {
	select {
	case s.inbox <- m:
	default:
		s.cfg.Log.Error("sync inbox full, dropping message", "kind", m.Kind)
	}
}

// Run is the actor's main loop (spec.md §5 "single-threaded cooperative
// inside each actor"); it returns when ctx is canceled.
func (s *Sync) Run(ctx context.Context) {
	defer close(s.done)
	s.cancelStatus = s.cfg.Status.Every(func() { s.Send(Msg{Kind: MsgTick}) })
	defer s.cancelStatus()
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-s.inbox:
			if err := s.Handle(ctx, m); err != nil {
				s.cfg.Log.Error("sync: handling message failed", "kind", m.Kind, "err", err)
			}
		}
	}
}

// Wait blocks until Run has returned.
func (s *Sync) Wait() { <-s.done }

// Handle applies one message synchronously; exported so tests can drive
// the actor deterministically (mirrors runtime.Runtime.Handle).
func (s *Sync) Handle(ctx context.Context, m Msg) error {
	switch m.Kind {
	case MsgTick:
		return s.onTick(ctx)
	case MsgStatus:
		return s.onStatus(ctx, m.PeerStatus)
	case MsgStartedHeight:
		return s.onStartedHeight(ctx, m.Height)
	case MsgDecided:
		return s.onDecided(m.Height)
	case MsgValueRequestIn:
		return s.onValueRequest(ctx, m.Peer, m.Request)
	case MsgValueResponseIn:
		return s.onValueResponse(ctx, m.Peer, m.Response)
	case MsgRequestTimedOut:
		return s.onRequestTimedOut(ctx, m.Peer, m.Timeout)
	}
	return nil
}

// onTick implements the periodic status broadcast (spec.md §4.7 "Every
// status_update_interval, broadcast Status").
func (s *Sync) onTick(context.Context) error {
	s.cfg.Transport.BroadcastStatus(Status{
		PeerID:           s.cfg.Self,
		TipHeight:        s.tip,
		HistoryMinHeight: s.historyMin,
	})
	active := make(map[PeerID]struct{}, len(s.peers))
	for p := range s.peers {
		active[p] = struct{}{}
	}
	s.cfg.Scorer.ResetInactive(active)
	return nil
}

// onStatus implements spec.md §4.7 "On receiving a peer Status with
// peer.tip > self.tip, mark node as lagging ... issue ValueRequest".
func (s *Sync) onStatus(ctx context.Context, st Status) error {
	s.peers[st.PeerID] = &peerState{status: st}
	s.cfg.Metrics.SetSyncPeers(len(s.peers))
	if !s.started {
		return nil
	}
	if st.TipHeight > s.tip {
		return s.requestValue(ctx, nil)
	}
	return nil
}

func (s *Sync) onStartedHeight(ctx context.Context, h types.Height) error {
	s.started = true
	s.syncHeight = h
	if h > 0 {
		s.tip = h - 1
	} else {
		s.tip = h
	}
	return s.requestValue(ctx, nil)
}

func (s *Sync) onDecided(h types.Height) error {
	s.tip = h
	delete(s.pending, h)
	return nil
}

// onValueRequest answers an inbound request from the local decision
// history (spec.md §4.7 "ask the host for decided values in the range
// ... reply with ValueResponse").
func (s *Sync) onValueRequest(ctx context.Context, peer PeerID, req ValueRequest) error {
	values, err := s.cfg.Host.GetDecidedValues(ctx, req.Range)
	if err != nil {
		s.cfg.Log.Error("sync: host failed to fetch decided values", "range", req.Range, "err", err)
		values = nil
	}
	s.cfg.Transport.SendValueResponse(peer, ValueResponse{Range: req.Range, Values: values})
	return nil
}

// onValueResponse implements spec.md §4.7's validate-then-inject step
// and the "sync certificate invariant": a value is injected only if its
// certificate verifies against the validator set for that height.
func (s *Sync) onValueResponse(ctx context.Context, peer PeerID, resp ValueResponse) error {
	pr, ok := s.pending[resp.Range.Start]
	if ok && pr.peer == peer {
		pr.cancel()
		delete(s.pending, resp.Range.Start)
		s.cfg.Metrics.ObserveSyncResponseTime(time.Since(pr.sentAt).Seconds())
	}

	if len(resp.Values) < resp.Range.Len() {
		s.cfg.Scorer.EmptyOrShortResponse(peer)
		s.cfg.Metrics.ObserveSyncFailure("empty_or_short")
		firstMissing := resp.Range.Start + types.Height(len(resp.Values))
		return s.requestValueFrom(ctx, firstMissing, peer)
	}

	for _, dv := range resp.Values {
		vs, err := s.cfg.Host.GetValidatorSet(ctx, dv.Height)
		if err != nil {
			s.cfg.Scorer.InvalidCertificate(peer)
			s.cfg.Metrics.ObserveSyncFailure("validator_set_lookup")
			return s.requestValueFrom(ctx, dv.Height, peer)
		}
		if err := dv.Cert.Verify(vs, s.cfg.Params); err != nil {
			s.cfg.Log.Warn("sync: rejecting value with invalid certificate", "height", dv.Height, "peer", peer, "err", err)
			s.cfg.Scorer.InvalidCertificate(peer)
			s.cfg.Metrics.ObserveSyncFailure("invalid_certificate")
			return s.requestValueFrom(ctx, dv.Height, peer)
		}
	}

	s.cfg.Scorer.Success(peer)
	for _, dv := range resp.Values {
		s.cfg.Consumer.InjectDecidedValue(dv.Height, dv.Round, dv.Value, dv.Cert)
	}
	return nil
}

func (s *Sync) onRequestTimedOut(ctx context.Context, peer PeerID, rng ValueRange) error {
	pr, ok := s.pending[rng.Start]
	if !ok || pr.peer != peer {
		return nil // already satisfied or superseded
	}
	delete(s.pending, rng.Start)
	s.cfg.Scorer.Timeout(peer)
	s.cfg.Metrics.ObserveSyncFailure("timeout")
	return s.requestValueFrom(ctx, rng.Start, peer)
}

// requestValue picks the highest-scoring eligible peer whose announced
// tip covers syncHeight and issues a ValueRequest, unless a request for
// syncHeight is already pending (spec.md §4.7 "if there is no pending
// request covering sync_height").
func (s *Sync) requestValue(ctx context.Context, exclude map[PeerID]struct{}) error {
	if _, pending := s.pending[s.syncHeight]; pending {
		return nil
	}
	var candidates []PeerID
	for id, p := range s.peers {
		if exclude != nil {
			if _, skip := exclude[id]; skip {
				continue
			}
		}
		if p.status.TipHeight >= s.syncHeight {
			candidates = append(candidates, id)
		}
	}
	peer, ok := s.cfg.Scorer.PickHighest(candidates)
	if !ok {
		return nil
	}

	peerTip := s.peers[peer].status.TipHeight
	end := s.syncHeight + types.Height(s.cfg.BatchSize) - 1
	if end > peerTip {
		end = peerTip
	}
	rng := ValueRange{Start: s.syncHeight, End: end}

	cancel := s.cfg.Timers.Schedule(func() {
		s.Send(Msg{Kind: MsgRequestTimedOut, Peer: peer, Timeout: rng})
	})
	s.pending[rng.Start] = pendingRequest{peer: peer, rng: rng, sentAt: time.Now(), cancel: cancel}
	s.cfg.Transport.SendValueRequest(peer, ValueRequest{Range: rng})
	s.cfg.Metrics.ObserveSyncRequest()
	return nil
}

// requestValueFrom re-issues a request starting at missingFrom,
// excluding the peer whose last response or timeout was unsatisfactory
// (spec.md §4.7 "retry via another peer").
func (s *Sync) requestValueFrom(ctx context.Context, missingFrom types.Height, exclude PeerID) error {
	if missingFrom < s.syncHeight {
		return nil
	}
	s.syncHeight = missingFrom
	return s.requestValue(ctx, map[PeerID]struct{}{exclude: {}})
}
