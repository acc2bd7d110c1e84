// Package ingest validates and batches incoming sensor readings and writes
// them to the time-partitioned store.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/scaqms/aqms-go/internal/conf"
	"github.com/scaqms/aqms-go/internal/datastore"
	"github.com/scaqms/aqms-go/internal/errors"
	"github.com/scaqms/aqms-go/internal/observability"
	"github.com/scaqms/aqms-go/internal/observability/metrics"
)

// Candidate is one reading submitted for ingestion, before validation.
type Candidate struct {
	StationID        uint
	SensorID         string
	Timestamp        time.Time
	PM25             float64
	CO2PPM           float64
	TemperatureC     float64
	HumidityPct      float64
	WindSpeedMS      float64
	SensorConfidence *float64 // optional sensor-reported confidence in [0,1]
}

// Result reports the outcome of one batch submission.
type Result struct {
	Accepted int
	Rejected int
}

// Ingestor validates candidate readings and persists accepted ones as
// transactional batches. Partial rejection is not an error; only store-level
// failure that survives the retry budget surfaces to the caller.
type Ingestor struct {
	ds       datastore.Interface
	settings conf.IngestSettings
	metrics  *metrics.IngestMetrics
	recorder *observability.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an Ingestor. metrics and recorder may be nil in tests.
func New(ds datastore.Interface, settings conf.IngestSettings, m *metrics.IngestMetrics, rec *observability.Recorder, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		ds:       ds,
		settings: settings,
		metrics:  m,
		recorder: rec,
		logger:   logger,
		now:      time.Now,
	}
}

// Ingest validates the batch, persists the accepted readings as one
// transaction and returns the accepted/rejected counts. Retried batches are
// idempotent through the store's (station, sensor, timestamp) dedup key.
func (ing *Ingestor) Ingest(ctx context.Context, batch []Candidate) (Result, error) {
	now := ing.now()
	readings := make([]datastore.Reading, 0, len(batch))
	var result Result

	for i := range batch {
		c := &batch[i]
		if reason := validate(c, now, ing.settings.MaxClockSkew); reason != "" {
			result.Rejected++
			if ing.metrics != nil {
				ing.metrics.RecordRejected(reason, 1)
			}
			ing.logger.Debug("rejected reading",
				"station", c.StationID, "sensor", c.SensorID, "reason", reason)
			continue
		}
		readings = append(readings, datastore.Reading{
			StationID:    c.StationID,
			SensorID:     c.SensorID,
			Timestamp:    c.Timestamp,
			Partition:    datastore.PartitionKey(c.Timestamp),
			PM25:         c.PM25,
			CO2PPM:       c.CO2PPM,
			TemperatureC: c.TemperatureC,
			HumidityPct:  c.HumidityPct,
			WindSpeedMS:  c.WindSpeedMS,
			QualityScore: qualityScore(c),
		})
	}

	if len(readings) == 0 {
		return result, nil
	}

	start := time.Now()
	if err := ing.saveWithRetry(ctx, readings); err != nil {
		if ing.metrics != nil {
			ing.metrics.RecordBatchFailure()
		}
		return result, err
	}
	elapsed := time.Since(start)

	result.Accepted = len(readings)

	// Bump station liveness; a failure here never fails the batch.
	lastSeen := make(map[uint]time.Time)
	for i := range readings {
		if readings[i].Timestamp.After(lastSeen[readings[i].StationID]) {
			lastSeen[readings[i].StationID] = readings[i].Timestamp
		}
	}
	for stationID, ts := range lastSeen {
		if err := ing.ds.UpdateStationLastSeen(stationID, ts); err != nil {
			ing.logger.Warn("failed to update station last seen", "station", stationID, "error", err)
		}
	}

	if ing.metrics != nil {
		ing.metrics.RecordAccepted(result.Accepted)
		ing.metrics.RecordBatchDuration(elapsed.Seconds())
	}
	if ing.recorder != nil {
		ing.recorder.AddAccepted(result.Accepted)
		ing.recorder.SetIngestLatency(float64(elapsed.Milliseconds()))
		var sumPM25 float64
		for i := range readings {
			sumPM25 += readings[i].PM25
		}
		ing.recorder.SetBatchAvgPM25(sumPM25 / float64(len(readings)))
	}

	return result, nil
}

// saveWithRetry writes the batch, retrying transient store failures with
// exponential backoff up to the configured attempt budget. The batch is
// never partially committed: the store writes it in one transaction.
func (ing *Ingestor) saveWithRetry(ctx context.Context, readings []datastore.Reading) error {
	backoff := ing.settings.RetryBackoff
	var lastErr error

	for attempt := 1; attempt <= ing.settings.RetryAttempts; attempt++ {
		if _, err := ing.ds.SaveReadings(ctx, readings); err == nil {
			return nil
		} else {
			lastErr = err
		}

		ing.logger.Warn("reading batch write failed",
			"attempt", attempt, "max_attempts", ing.settings.RetryAttempts,
			"batch_size", len(readings), "error", lastErr)

		if attempt == ing.settings.RetryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return errors.New(lastErr).
		Component("ingest").
		Category(errors.CategoryDatabase).
		Context("batch_size", len(readings)).
		Context("attempts", ing.settings.RetryAttempts).
		Build()
}
