package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestRecordNodeHop_IncrementsByKind(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordNodeHop("planner")
	m.RecordNodeHop("planner")
	m.RecordNodeHop("reflection")

	assert.Equal(t, 2.0, counterValue(t, m.NodeHops.WithLabelValues("planner")))
	assert.Equal(t, 1.0, counterValue(t, m.NodeHops.WithLabelValues("reflection")))
}

func TestRecordOutputRetryOutcome_IncrementsByOutcome(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordOutputRetryOutcome("success")
	m.RecordOutputRetryOutcome("exhausted")
	m.RecordOutputRetryOutcome("exhausted")

	assert.Equal(t, 1.0, counterValue(t, m.OutputRetryTotal.WithLabelValues("success")))
	assert.Equal(t, 2.0, counterValue(t, m.OutputRetryTotal.WithLabelValues("exhausted")))
}

func TestObserveCheckpointSave_DoesNotPanic(t *testing.T) {
	m := New(prometheus.NewRegistry())
	assert.NotPanics(t, func() { m.ObserveCheckpointSave(5 * time.Millisecond) })
}

func TestNilMetrics_AllMethodsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordNodeHop("planner")
		m.RecordOutputRetryOutcome("success")
		m.ObserveCheckpointSave(time.Millisecond)
	})
}
