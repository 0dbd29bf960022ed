package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/maestro-bft/maestro/metrics"
)

func TestNewRegistersAllCollectorsAndRecordsValues(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	m.SetHeight(42)
	m.ObserveDecision(1.5)
	m.ObserveVote("prevote")
	m.ObserveEquivocation()

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	var found bool
	for _, f := range families {
		if f.GetName() == "maestro_height" {
			found = true
			require.Equal(t, float64(42), f.Metric[0].GetGauge().GetValue())
		}
	}
	require.True(t, found, "maestro_height must be registered and gathered")
}

func TestNilMetricsIsANoop(t *testing.T) {
	var m *metrics.Metrics
	require.NotPanics(t, func() {
		m.SetHeight(1)
		m.ObserveDecision(0.1)
		m.ObserveVote("precommit")
		m.ObserveSyncFailure("timeout")
	})
}
