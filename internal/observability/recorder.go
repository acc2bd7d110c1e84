package observability

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/scaqms/aqms-go/internal/datastore"
)

// Recorder is a passive observer that appends SystemMetric rows on a fixed
// tick. Producers update its counters through non-blocking setters; a
// recording failure is logged and dropped, never propagated.
type Recorder struct {
	ds       datastore.Interface
	interval time.Duration
	logger   *slog.Logger
	start    time.Time
	proc     *process.Process

	acceptedTotal  atomic.Int64
	anomalyTotal   atomic.Int64
	lastLatencyMS  atomicFloat
	lastAvgPM25    atomicFloat
	lastAccuracy   atomicFloat
	modelVersion   atomic.Int64
	degradedCycles atomic.Int64
}

// atomicFloat is a float64 guarded by a mutex; recorder ticks are infrequent
// enough that contention does not matter.
type atomicFloat struct {
	mu sync.Mutex
	v  float64
}

func (f *atomicFloat) Store(v float64) {
	f.mu.Lock()
	f.v = v
	f.mu.Unlock()
}

func (f *atomicFloat) Load() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.v
}

// NewRecorder creates a system metrics recorder writing through ds.
func NewRecorder(ds datastore.Interface, interval time.Duration, logger *slog.Logger) *Recorder {
	proc, _ := process.NewProcess(int32(processPID()))
	return &Recorder{
		ds:       ds,
		interval: interval,
		logger:   logger,
		start:    time.Now(),
		proc:     proc,
	}
}

// AddAccepted adds to the running accepted-reading total.
func (r *Recorder) AddAccepted(n int) { r.acceptedTotal.Add(int64(n)) }

// AddAnomalies adds to the running anomaly total.
func (r *Recorder) AddAnomalies(n int) { r.anomalyTotal.Add(int64(n)) }

// SetIngestLatency records the latest batch persistence latency.
func (r *Recorder) SetIngestLatency(ms float64) { r.lastLatencyMS.Store(ms) }

// SetBatchAvgPM25 records the mean PM2.5 of the latest accepted batch.
func (r *Recorder) SetBatchAvgPM25(v float64) { r.lastAvgPM25.Store(v) }

// SetAccuracy records the latest classifier batch accuracy.
func (r *Recorder) SetAccuracy(acc float64) { r.lastAccuracy.Store(acc) }

// SetModelVersion records the current model version.
func (r *Recorder) SetModelVersion(v int64) { r.modelVersion.Store(v) }

// AddDegradedCycle increments the degraded-cycle total.
func (r *Recorder) AddDegradedCycle() { r.degradedCycles.Add(1) }

// Run records a metrics snapshot every interval until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.record()
		}
	}
}

// record snapshots the counters into SystemMetric rows.
func (r *Recorder) record() {
	now := time.Now()
	elapsedMin := math.Max(now.Sub(r.start).Minutes(), 1e-6)

	rows := []datastore.SystemMetric{
		{Name: "ingest_throughput", Value: float64(r.acceptedTotal.Load()) / elapsedMin, Unit: "rows/min", RecordedAt: now},
		{Name: "ingest_latency", Value: r.lastLatencyMS.Load(), Unit: "ms", RecordedAt: now},
		{Name: "avg_pm25_batch", Value: r.lastAvgPM25.Load(), Unit: "ug/m3", RecordedAt: now},
		{Name: "anomaly_count", Value: float64(r.anomalyTotal.Load()), Unit: "count", RecordedAt: now},
		{Name: "stream_model_accuracy", Value: r.lastAccuracy.Load(), Unit: "score", RecordedAt: now},
		{Name: "model_version", Value: float64(r.modelVersion.Load()), Unit: "version", RecordedAt: now},
		{Name: "degraded_cycles", Value: float64(r.degradedCycles.Load()), Unit: "count", RecordedAt: now},
		{Name: "process_uptime", Value: now.Sub(r.start).Seconds(), Unit: "s", RecordedAt: now},
	}

	if r.proc != nil {
		if mem, err := r.proc.MemoryInfo(); err == nil && mem != nil {
			rows = append(rows, datastore.SystemMetric{
				Name: "process_rss", Value: float64(mem.RSS) / (1024 * 1024), Unit: "MB", RecordedAt: now,
			})
		}
		if cpu, err := r.proc.CPUPercent(); err == nil {
			rows = append(rows, datastore.SystemMetric{
				Name: "process_cpu", Value: cpu, Unit: "percent", RecordedAt: now,
			})
		}
	}

	if err := r.ds.InsertSystemMetrics(rows); err != nil {
		// Metric recording must never propagate failures to producers.
		r.logger.Warn("dropping system metrics snapshot", "error", err)
	}
}
