package main

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maestro-bft/maestro/runtime"
	"github.com/maestro-bft/maestro/store"
	"github.com/maestro-bft/maestro/types"
)

// This file is the bundled demo application: the minimal Host, Gossip
// and Value/Signer implementation a process needs to actually run the
// engine, adapted from the teacher's cmd/gordian-echo (echoApp,
// echoConsensusStrategy): no real transaction semantics, just a
// deterministic app-state hash derived from height and round, enough to
// exercise every effect the runtime drives (GetValue, DecidedOnValue,
// PublishVote/PublishProposal).

// demoValue is the application payload: a hash of (height, round), as a
// stand-in for a real block's transactions.
type demoValue []byte

func (v demoValue) ID() types.ValueId { return types.ValueId(v) }

func demoValueFor(h types.Height, r types.Round) demoValue {
	sum := sha256.Sum256([]byte(fmt.Sprintf("height:%d round:%d", h, r)))
	return demoValue(sum[:])
}

// demoValueCodec round-trips demoValue verbatim, matching codec.ValueCodec's
// shape (store.ValueCodec) so proposals can be WAL'd to disk.
type demoValueCodec struct{}

func (demoValueCodec) EncodeValue(v types.Value) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	dv, ok := v.(demoValue)
	if !ok {
		return nil, fmt.Errorf("demoapp: unexpected value type %T", v)
	}
	return []byte(dv), nil
}

func (demoValueCodec) DecodeValue(b []byte) (types.Value, error) {
	return demoValue(b), nil
}

// demoPubKey wraps an ed25519 public key as types.PublicKey.
type demoPubKey struct {
	Key ed25519.PublicKey
}

func (k demoPubKey) Address() types.Address { return types.Address(k.Key) }
func (k demoPubKey) Bytes() []byte          { return []byte(k.Key) }

// demoSigner signs with an in-memory ed25519 key. A production
// deployment would implement signing.Signer against a remote signer or
// HSM instead; this exists so the bundled demo can run without one.
type demoSigner struct {
	Priv ed25519.PrivateKey
}

func (s demoSigner) PublicKey() types.PublicKey {
	return demoPubKey{Key: s.Priv.Public().(ed25519.PublicKey)}
}

func (s demoSigner) Sign(signBytes []byte) (types.Signature, error) {
	return types.Signature(ed25519.Sign(s.Priv, signBytes)), nil
}

// demoVerifier checks ed25519 signatures from demoSigner.
type demoVerifier struct{}

func (demoVerifier) Verify(pub types.PublicKey, signBytes []byte, sig types.Signature) bool {
	k, ok := pub.(demoPubKey)
	if !ok {
		return false
	}
	return ed25519.Verify(k.Key, signBytes, []byte(sig))
}

// demoHost always proposes demoValueFor(h, r) and logs decisions; it
// never rejects a proposal (there is no application-level validity rule
// to check in the demo).
type demoHost struct {
	log *slog.Logger
	vs  types.ValidatorSet

	mu      sync.Mutex
	decided map[types.Height]types.Value
}

func newDemoHost(log *slog.Logger, vs types.ValidatorSet) *demoHost {
	return &demoHost{log: log, vs: vs, decided: make(map[types.Height]types.Value)}
}

func (h *demoHost) GetValue(hgt types.Height, r types.Round) (types.Value, bool) {
	return demoValueFor(hgt, r), true
}

func (h *demoHost) GetValidatorSet(types.Height) (types.ValidatorSet, error) {
	return h.vs, nil
}

func (h *demoHost) DecidedOnValue(hgt types.Height, r types.Round, v types.Value, commits []types.SignedVote) {
	h.mu.Lock()
	h.decided[hgt] = v
	h.mu.Unlock()
	h.log.Info("decided", "height", hgt, "round", r, "value_id", v.ID(), "commits", len(commits))
}

func (h *demoHost) DecidedHeight(hgt types.Height) (types.Value, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.decided[hgt]
	return v, ok
}

// localGossip fans a validator's votes and proposals out to every
// runtime in peers (the demo passes all of them, the sender included),
// standing in for the transport
// (spec.md §1 excludes transport from scope; SPEC_FULL.md names tmp2p
// as a dropped teacher dependency for the same reason). Good enough for
// the bundled single-process demo network; a real deployment supplies
// its own Gossip backed by an actual network transport.
type localGossip struct {
	self  types.Address
	peers []*runtime.Runtime
}

func (g *localGossip) PublishVote(sv types.SignedVote) {
	for _, p := range g.peers {
		p.Send(runtime.Msg{Kind: runtime.MsgVote, Vote: sv})
	}
}

func (g *localGossip) PublishProposal(sp types.SignedProposal) {
	for _, p := range g.peers {
		p.Send(runtime.Msg{Kind: runtime.MsgProposal, Proposal: sp, Validity: types.Valid})
	}
}

// wallTimers schedules with the real wall clock, using time.AfterFunc.
type wallTimers struct{}

func (wallTimers) Schedule(d runtime.TimeoutDuration, fire func()) func() {
	t := time.AfterFunc(time.Duration(d)*time.Millisecond, fire)
	return func() { t.Stop() }
}

var _ store.ValueCodec = demoValueCodec{}
