// Package metrics exposes the Graph Executor's Prometheus instrumentation:
// node-hop counts by kind, checkpoint-save latency, and output-tool retry
// outcomes, grounded on the teacher's pkg/observability.Metrics registry
// pattern (counters/histograms registered once). There is no package-level
// handle: a *Metrics value is passed to the executor, which records on it.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the executor's Prometheus collectors.
type Metrics struct {
	NodeHops          *prometheus.CounterVec
	CheckpointSaveSec prometheus.Histogram
	OutputRetryTotal  *prometheus.CounterVec
}

// New registers the executor's collectors against reg and returns the
// handle. Pass prometheus.NewRegistry() in tests to avoid colliding with any
// process-global default registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NodeHops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentengine_node_hops_total",
			Help: "Node hops executed by the graph executor, by node kind.",
		}, []string{"kind"}),
		CheckpointSaveSec: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "agentengine_checkpoint_save_seconds",
			Help:    "Latency of Checkpoint Store Save calls.",
			Buckets: prometheus.DefBuckets,
		}),
		OutputRetryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentengine_output_retry_total",
			Help: "Output-tool retry/recovery outcomes.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.NodeHops, m.CheckpointSaveSec, m.OutputRetryTotal)
	return m
}

// ObserveCheckpointSave records how long a Checkpoint Store Save call took.
func (m *Metrics) ObserveCheckpointSave(d time.Duration) {
	if m == nil {
		return
	}
	m.CheckpointSaveSec.Observe(d.Seconds())
}

// RecordNodeHop increments the node-hop counter for kind.
func (m *Metrics) RecordNodeHop(kind string) {
	if m == nil {
		return
	}
	m.NodeHops.WithLabelValues(kind).Inc()
}

// RecordOutputRetryOutcome increments the output-retry counter for outcome,
// one of "success", "recovered_via_alternative", or "exhausted".
func (m *Metrics) RecordOutputRetryOutcome(outcome string) {
	if m == nil {
		return
	}
	m.OutputRetryTotal.WithLabelValues(outcome).Inc()
}
