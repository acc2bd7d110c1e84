package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ClassifierMetrics contains Prometheus metrics for the online classifier.
type ClassifierMetrics struct {
	cycleDuration      prometheus.Histogram
	cyclesTotal        *prometheus.CounterVec
	predictionsWritten prometheus.Counter
	batchAccuracy      prometheus.Gauge
	modelVersion       prometheus.Gauge
}

// NewClassifierMetrics creates and registers new classifier metrics.
func NewClassifierMetrics(registry *prometheus.Registry) (*ClassifierMetrics, error) {
	m := &ClassifierMetrics{
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "classifier_cycle_duration_seconds",
			Help:    "Time taken by one classifier update cycle",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		cyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classifier_cycles_total",
			Help: "Total number of classifier cycles",
		}, []string{"status"}), // status: ok, empty, skipped, error
		predictionsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classifier_predictions_written_total",
			Help: "Total number of predictions persisted",
		}),
		batchAccuracy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "classifier_batch_accuracy",
			Help: "Accuracy of the latest mini-batch against derived labels",
		}),
		modelVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "classifier_model_version",
			Help: "Current persisted model version",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.cycleDuration, m.cyclesTotal, m.predictionsWritten, m.batchAccuracy, m.modelVersion,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordCycle observes a completed cycle with its duration and status.
func (m *ClassifierMetrics) RecordCycle(seconds float64, status string) {
	m.cycleDuration.Observe(seconds)
	m.cyclesTotal.WithLabelValues(status).Inc()
}

// RecordPredictions adds to the persisted prediction counter.
func (m *ClassifierMetrics) RecordPredictions(n int64) {
	m.predictionsWritten.Add(float64(n))
}

// RecordBatchAccuracy sets the latest mini-batch accuracy estimate.
func (m *ClassifierMetrics) RecordBatchAccuracy(accuracy float64) {
	m.batchAccuracy.Set(accuracy)
}

// RecordModelVersion sets the current model version gauge.
func (m *ClassifierMetrics) RecordModelVersion(version int64) {
	m.modelVersion.Set(float64(version))
}
