package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DetectorMetrics contains Prometheus metrics for the outlier detector.
type DetectorMetrics struct {
	cycleDuration  prometheus.Histogram
	cyclesTotal    *prometheus.CounterVec
	degradedCycles prometheus.Counter
	anomaliesTotal *prometheus.CounterVec
	alertsCreated  *prometheus.CounterVec
}

// NewDetectorMetrics creates and registers new detector metrics.
func NewDetectorMetrics(registry *prometheus.Registry) (*DetectorMetrics, error) {
	m := &DetectorMetrics{
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "detector_cycle_duration_seconds",
			Help:    "Time taken by one outlier detection cycle",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		cyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detector_cycles_total",
			Help: "Total number of detector cycles",
		}, []string{"status"}), // status: ok, degraded, skipped, error
		degradedCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "detector_degraded_cycles_total",
			Help: "Cycles that completed with one or more methods skipped",
		}),
		anomaliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detector_anomalies_total",
			Help: "Total number of readings flagged anomalous",
		}, []string{"method"}), // method: zscore, density, rule
		alertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detector_alerts_created_total",
			Help: "Total number of alerts created, by severity",
		}, []string{"severity"}),
	}

	for _, c := range []prometheus.Collector{
		m.cycleDuration, m.cyclesTotal, m.degradedCycles, m.anomaliesTotal, m.alertsCreated,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordCycle observes a completed cycle with its duration and status.
func (m *DetectorMetrics) RecordCycle(seconds float64, status string) {
	m.cycleDuration.Observe(seconds)
	m.cyclesTotal.WithLabelValues(status).Inc()
}

// RecordDegradedCycle increments the degraded cycle counter.
func (m *DetectorMetrics) RecordDegradedCycle() {
	m.degradedCycles.Inc()
}

// RecordAnomaly increments the anomaly counter for a detection method.
func (m *DetectorMetrics) RecordAnomaly(method string, n int) {
	m.anomaliesTotal.WithLabelValues(method).Add(float64(n))
}

// RecordAlertCreated increments the created alert counter for a severity.
func (m *DetectorMetrics) RecordAlertCreated(severity string) {
	m.alertsCreated.WithLabelValues(severity).Inc()
}
