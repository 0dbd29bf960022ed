// Package metrics collects runtime and sync actor observability data
// via prometheus/client_golang, grounded on the pack's
// luxfi-consensus/protocol/nova metrics.go pattern (a plain struct of
// pre-built collectors constructed once and registered against a
// supplied prometheus.Registerer, rather than package-level globals).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector this module exposes. A nil *Metrics is
// safe to call methods on: every method is a no-op when m is nil, so
// callers can pass metrics.New or nil interchangeably without a guard
// at every call site (mirrors the teacher's optional-metrics pattern of
// using a no-op implementation rather than scattering nil checks).
type Metrics struct {
	height             prometheus.Gauge
	round              prometheus.Gauge
	decisions          prometheus.Counter
	decisionLatency    prometheus.Histogram
	votesProcessed     *prometheus.CounterVec
	proposalsProcessed prometheus.Counter
	equivocations      prometheus.Counter
	roundsSkipped      prometheus.Counter

	syncPeers         prometheus.Gauge
	syncRequestsSent  prometheus.Counter
	syncResponseTime  prometheus.Histogram
	syncFailures      *prometheus.CounterVec
	reassemblyPending prometheus.Gauge
}

// New builds every collector and registers them against reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		height: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "maestro_height",
			Help: "Current consensus height.",
		}),
		round: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "maestro_round",
			Help: "Current round within the active height.",
		}),
		decisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maestro_decisions_total",
			Help: "Number of heights decided.",
		}),
		decisionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "maestro_decision_latency_seconds",
			Help:    "Time from height start to decision.",
			Buckets: prometheus.DefBuckets,
		}),
		votesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maestro_votes_processed_total",
			Help: "Votes applied by the vote keeper, labeled by type.",
		}, []string{"type"}),
		proposalsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maestro_proposals_processed_total",
			Help: "Proposals stored by the proposal keeper.",
		}),
		equivocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maestro_equivocations_total",
			Help: "Equivocation evidence recorded.",
		}),
		roundsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maestro_rounds_skipped_total",
			Help: "Rounds skipped via a skip-round certificate.",
		}),
		syncPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "maestro_sync_known_peers",
			Help: "Peers with a known status.",
		}),
		syncRequestsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maestro_sync_requests_sent_total",
			Help: "Value range requests issued to peers.",
		}),
		syncResponseTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "maestro_sync_response_seconds",
			Help:    "Time between a value request and its response.",
			Buckets: prometheus.DefBuckets,
		}),
		syncFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maestro_sync_failures_total",
			Help: "Sync failures, labeled by reason (empty_or_short, validator_set_lookup, invalid_certificate, timeout).",
		}, []string{"reason"}),
		reassemblyPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "maestro_proposal_parts_pending_streams",
			Help: "Proposal-part streams currently buffered awaiting completion.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.height, m.round, m.decisions, m.decisionLatency, m.votesProcessed,
		m.proposalsProcessed, m.equivocations, m.roundsSkipped,
		m.syncPeers, m.syncRequestsSent, m.syncResponseTime, m.syncFailures,
		m.reassemblyPending,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) SetHeight(h uint64) {
	if m == nil {
		return
	}
	m.height.Set(float64(h))
}

func (m *Metrics) SetRound(r int64) {
	if m == nil {
		return
	}
	m.round.Set(float64(r))
}

func (m *Metrics) ObserveDecision(latencySeconds float64) {
	if m == nil {
		return
	}
	m.decisions.Inc()
	m.decisionLatency.Observe(latencySeconds)
}

func (m *Metrics) ObserveVote(voteType string) {
	if m == nil {
		return
	}
	m.votesProcessed.WithLabelValues(voteType).Inc()
}

func (m *Metrics) ObserveProposal() {
	if m == nil {
		return
	}
	m.proposalsProcessed.Inc()
}

func (m *Metrics) ObserveEquivocation() {
	if m == nil {
		return
	}
	m.equivocations.Inc()
}

func (m *Metrics) ObserveRoundSkipped() {
	if m == nil {
		return
	}
	m.roundsSkipped.Inc()
}

func (m *Metrics) SetSyncPeers(n int) {
	if m == nil {
		return
	}
	m.syncPeers.Set(float64(n))
}

func (m *Metrics) ObserveSyncRequest() {
	if m == nil {
		return
	}
	m.syncRequestsSent.Inc()
}

func (m *Metrics) ObserveSyncResponseTime(seconds float64) {
	if m == nil {
		return
	}
	m.syncResponseTime.Observe(seconds)
}

func (m *Metrics) ObserveSyncFailure(reason string) {
	if m == nil {
		return
	}
	m.syncFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetReassemblyPending(n int) {
	if m == nil {
		return
	}
	m.reassemblyPending.Set(float64(n))
}
