package sync

import (
	"math/rand"
	"sync"
)

// Scorer tracks a per-peer reputation fed by sync outcomes (spec.md
// §4.7 "Peer scoring: success..., empty response, invalid certificate,
// and timeout each feed into a configurable scorer"), grounded on
// malachite's `PeerScorer`/`scoring.rs` (referenced from
// `core-sync/src/handle.rs`'s `update_score_with_metrics` calls).
type Scorer struct {
	mu     sync.Mutex
	scores map[PeerID]int

	// EjectBelow is the score at or below which a peer is excluded from
	// selection until it earns its way back above the line.
	EjectBelow int
}

// NewScorer returns a Scorer with the default eviction threshold.
func NewScorer() *Scorer {
	return &Scorer{scores: make(map[PeerID]int), EjectBelow: -5}
}

func (s *Scorer) adjust(p PeerID, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[p] += delta
}

// Success records a completed, valid response.
func (s *Scorer) Success(p PeerID) { s.adjust(p, 1) }

// EmptyOrShortResponse records a response missing some or all requested
// values.
func (s *Scorer) EmptyOrShortResponse(p PeerID) { s.adjust(p, -2) }

// InvalidCertificate records a response whose certificate failed
// verification.
func (s *Scorer) InvalidCertificate(p PeerID) { s.adjust(p, -5) }

// Timeout records a request that never received a response.
func (s *Scorer) Timeout(p PeerID) { s.adjust(p, -3) }

// Score returns p's current score (0 if unknown).
func (s *Scorer) Score(p PeerID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scores[p]
}

// ResetInactive clears scores back to zero for peers not present in
// active, letting a peer that has been quiet for a while re-enter
// selection (mirrors `reset_inactive_peers_scores`).
func (s *Scorer) ResetInactive(active map[PeerID]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for p := range s.scores {
		if _, ok := active[p]; !ok {
			delete(s.scores, p)
		}
	}
}

// PickHighest chooses a peer from candidates using "highest-scoring
// random choice" (spec.md §4.7): peers at or below EjectBelow are
// excluded; among the remainder, one of the highest-scoring peers is
// picked uniformly at random, so equally good peers share load.
func (s *Scorer) PickHighest(candidates []PeerID) (PeerID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best int
	var top []PeerID
	for _, p := range candidates {
		sc := s.scores[p]
		if sc <= s.EjectBelow {
			continue
		}
		switch {
		case len(top) == 0 || sc > best:
			best = sc
			top = append(top[:0], p)
		case sc == best:
			top = append(top, p)
		}
	}
	if len(top) == 0 {
		return "", false
	}
	return top[rand.Intn(len(top))], true
}
