package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scaqms/aqms-go/internal/datastore"
	"github.com/scaqms/aqms-go/internal/logging"
)

// metricSink captures the SystemMetric rows the recorder writes.
type metricSink struct {
	datastore.Interface
	rows []datastore.SystemMetric
	fail bool
}

func (s *metricSink) InsertSystemMetrics(metrics []datastore.SystemMetric) error {
	if s.fail {
		return errors.New("store unavailable")
	}
	s.rows = append(s.rows, metrics...)
	return nil
}

func (s *metricSink) byName(name string) (datastore.SystemMetric, bool) {
	for _, row := range s.rows {
		if row.Name == name {
			return row, true
		}
	}
	return datastore.SystemMetric{}, false
}

func TestRecordSnapshotsCounters(t *testing.T) {
	sink := &metricSink{}
	rec := NewRecorder(sink, time.Minute, logging.ForService("test"))

	rec.AddAccepted(120)
	rec.AddAnomalies(3)
	rec.SetIngestLatency(42.5)
	rec.SetBatchAvgPM25(18.25)
	rec.SetAccuracy(0.91)
	rec.SetModelVersion(7)
	rec.AddDegradedCycle()

	rec.record()

	require.NotEmpty(t, sink.rows)

	anomalies, ok := sink.byName("anomaly_count")
	require.True(t, ok)
	assert.Equal(t, 3.0, anomalies.Value)

	latency, ok := sink.byName("ingest_latency")
	require.True(t, ok)
	assert.Equal(t, 42.5, latency.Value)
	assert.Equal(t, "ms", latency.Unit)

	avgPM25, ok := sink.byName("avg_pm25_batch")
	require.True(t, ok)
	assert.Equal(t, 18.25, avgPM25.Value)
	assert.Equal(t, "ug/m3", avgPM25.Unit)

	accuracy, ok := sink.byName("stream_model_accuracy")
	require.True(t, ok)
	assert.Equal(t, 0.91, accuracy.Value)

	version, ok := sink.byName("model_version")
	require.True(t, ok)
	assert.Equal(t, 7.0, version.Value)

	degraded, ok := sink.byName("degraded_cycles")
	require.True(t, ok)
	assert.Equal(t, 1.0, degraded.Value)

	throughput, ok := sink.byName("ingest_throughput")
	require.True(t, ok)
	assert.Greater(t, throughput.Value, 0.0)
}

func TestRecordFailureIsDropped(t *testing.T) {
	sink := &metricSink{fail: true}
	rec := NewRecorder(sink, time.Minute, logging.ForService("test"))

	// Must not panic or propagate; the snapshot is simply lost.
	rec.record()
	assert.Empty(t, sink.rows)
}
