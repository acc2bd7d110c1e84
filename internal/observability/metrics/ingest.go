// Package metrics provides Prometheus metrics for AQMS pipeline observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics contains Prometheus metrics for the reading ingestion path.
type IngestMetrics struct {
	readingsAccepted prometheus.Counter
	readingsRejected *prometheus.CounterVec
	batchDuration    prometheus.Histogram
	batchFailures    prometheus.Counter
}

// NewIngestMetrics creates and registers new ingest metrics.
func NewIngestMetrics(registry *prometheus.Registry) (*IngestMetrics, error) {
	m := &IngestMetrics{
		readingsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_readings_accepted_total",
			Help: "Total number of readings accepted and persisted",
		}),
		readingsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_readings_rejected_total",
			Help: "Total number of readings rejected by validation",
		}, []string{"reason"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_batch_duration_seconds",
			Help:    "Time taken to persist one reading batch",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		batchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_batch_failures_total",
			Help: "Total number of batches that exhausted their retry budget",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.readingsAccepted, m.readingsRejected, m.batchDuration, m.batchFailures,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordAccepted increments the accepted readings counter.
func (m *IngestMetrics) RecordAccepted(n int) {
	m.readingsAccepted.Add(float64(n))
}

// RecordRejected increments the rejected readings counter for a reason.
func (m *IngestMetrics) RecordRejected(reason string, n int) {
	m.readingsRejected.WithLabelValues(reason).Add(float64(n))
}

// RecordBatchDuration observes the persistence latency of one batch.
func (m *IngestMetrics) RecordBatchDuration(seconds float64) {
	m.batchDuration.Observe(seconds)
}

// RecordBatchFailure increments the failed batch counter.
func (m *IngestMetrics) RecordBatchFailure() {
	m.batchFailures.Inc()
}
