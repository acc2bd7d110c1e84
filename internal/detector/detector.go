// Package detector implements the ensemble outlier detection cycle: a
// statistical z-score method and a density-based method scored over each
// zone's window of new readings, fused by OR so that missed pollution events
// stay rarer than false alarms.
package detector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/scaqms/aqms-go/internal/alerting"
	"github.com/scaqms/aqms-go/internal/conf"
	"github.com/scaqms/aqms-go/internal/datastore"
	"github.com/scaqms/aqms-go/internal/errors"
	"github.com/scaqms/aqms-go/internal/observability"
	"github.com/scaqms/aqms-go/internal/observability/metrics"
	"github.com/scaqms/aqms-go/internal/window"
)

// Consumer is the watermark consumer name of the outlier detector.
const Consumer = "outlier-detector"

// Alert types emitted by the detector.
const (
	AlertTypeOutlier  = "Outlier Detected"
	AlertTypeHighPM25 = "High PM2.5"
	AlertTypePM25     = "PM2.5 Alert"
	AlertTypeCO2      = "CO2 Alert"
)

// Rule-based alert thresholds on raw quantities.
const (
	pm25Critical = 100.0
	pm25High     = 55.0
	co2Moderate  = 800.0
)

// Detector runs the periodic outlier detection pass.
type Detector struct {
	ds       datastore.Interface
	reader   *window.Reader
	alerts   *alerting.Manager
	settings conf.DetectorSettings
	metrics  *metrics.DetectorMetrics
	recorder *observability.Recorder
	logger   *slog.Logger

	density *densityMethod
	// rolling per-zone statistics for the z-score method, updated
	// incrementally so old readings are never reprocessed
	zoneStats map[string]*rollingStats
}

// New creates a Detector. metrics and recorder may be nil in tests.
func New(ds datastore.Interface, alerts *alerting.Manager, settings conf.DetectorSettings,
	m *metrics.DetectorMetrics, rec *observability.Recorder, logger *slog.Logger) *Detector {
	return &Detector{
		ds:       ds,
		reader:   window.NewReader(ds, Consumer, settings.Window),
		alerts:   alerts,
		settings: settings,
		metrics:  m,
		recorder: rec,
		logger:   logger,
		density: &densityMethod{
			neighbors:     settings.Neighbors,
			contamination: settings.Contamination,
			minSamples:    settings.MinSamples,
		},
		zoneStats: make(map[string]*rollingStats),
	}
}

// Cycle runs one detection pass over every zone. A zone whose density method
// cannot fit is handled by the statistical method alone and recorded as a
// degraded cycle, not a failure.
func (d *Detector) Cycle(ctx context.Context) error {
	start := time.Now()
	status := "ok"

	zones, err := d.ds.GetZones()
	if err != nil {
		d.recordCycle(start, "error")
		return errors.New(err).Component("detector").Category(errors.CategoryDatabase).Build()
	}

	for _, zone := range zones {
		degraded, err := d.processZone(ctx, zone)
		if err != nil {
			d.logger.Error("zone processing failed", "zone", zone, "error", err)
			status = "error"
			continue
		}
		if degraded && status == "ok" {
			status = "degraded"
		}
	}

	d.recordCycle(start, status)
	return nil
}

// processZone scores the new readings of one zone and emits alerts for
// flagged readings. Returns whether the density method was skipped.
func (d *Detector) processZone(ctx context.Context, zone string) (degraded bool, err error) {
	stations, err := d.ds.GetStationsByZone(zone)
	if err != nil {
		return false, fmt.Errorf("listing stations for zone %s: %w", zone, err)
	}

	var readings []datastore.Reading
	lastTS := make(map[uint]time.Time, len(stations))
	for i := range stations {
		st := &stations[i]
		if st.Status == datastore.StationRetired {
			continue
		}
		rs, err := d.reader.Next(ctx, st.ID)
		if err != nil {
			return false, fmt.Errorf("window for station %d: %w", st.ID, err)
		}
		if len(rs) > 0 {
			lastTS[st.ID] = rs[len(rs)-1].Timestamp
			readings = append(readings, rs...)
		}
	}
	if len(readings) == 0 {
		return false, nil
	}

	stats, ok := d.zoneStats[zone]
	if !ok {
		stats = &rollingStats{}
		d.zoneStats[zone] = stats
	}
	zscore := &zscoreMethod{stats: stats}

	// Density method over the whole zone window; skipped below the minimum
	// sample threshold.
	densityRes, densityErr := d.density.fitScore(readings)
	if densityErr != nil {
		if !errors.HasCategory(densityErr, errors.CategoryModelFit) {
			return false, densityErr
		}
		degraded = true
		if d.metrics != nil {
			d.metrics.RecordDegradedCycle()
		}
		if d.recorder != nil {
			d.recorder.AddDegradedCycle()
		}
		d.logger.Debug("density method skipped", "zone", zone, "reason", densityErr)
	}

	anomalies := 0
	for i := range readings {
		r := &readings[i]

		zNorm := zscore.score(r)
		zFlag := zscore.flagged(zNorm)

		dNorm := 0.0
		dFlag := false
		if densityRes != nil {
			dNorm = densityRes.scores[i]
			dFlag = densityRes.flagged(i)
		}

		if zFlag && d.metrics != nil {
			d.metrics.RecordAnomaly("zscore", 1)
		}
		if dFlag && d.metrics != nil {
			d.metrics.RecordAnomaly("density", 1)
		}

		// Either method flagging is enough.
		if zFlag || dFlag {
			anomalies++
			score := zNorm
			method := "zscore"
			if dNorm > score {
				score = dNorm
				method = "density"
			}
			d.emit(ctx, r, AlertTypeOutlier, severityFor(score), score,
				fmt.Sprintf("Anomaly (%s): PM2.5=%.1f, CO2=%.0f ppm", method, r.PM25, r.CO2PPM))
		}

		d.ruleAlerts(ctx, r)
	}

	if anomalies > 0 && d.recorder != nil {
		d.recorder.AddAnomalies(anomalies)
	}

	// Watermarks advance only after the whole zone batch was processed, so a
	// failed cycle reprocesses the same readings next time.
	for stationID, ts := range lastTS {
		if err := d.reader.Commit(stationID, ts); err != nil {
			return degraded, fmt.Errorf("watermark for station %d: %w", stationID, err)
		}
	}

	return degraded, nil
}

// ruleAlerts raises the fixed-threshold alerts carried over from the
// original deployment's rule set.
func (d *Detector) ruleAlerts(ctx context.Context, r *datastore.Reading) {
	switch {
	case r.PM25 > pm25Critical:
		d.emit(ctx, r, AlertTypeHighPM25, datastore.SeverityCritical, r.PM25/100,
			fmt.Sprintf("PM2.5 %.1f ug/m3", r.PM25))
	case r.PM25 > pm25High:
		d.emit(ctx, r, AlertTypePM25, datastore.SeverityHigh, r.PM25/100,
			fmt.Sprintf("PM2.5 %.1f ug/m3", r.PM25))
	}
	if r.CO2PPM > co2Moderate {
		d.emit(ctx, r, AlertTypeCO2, datastore.SeverityModerate, r.CO2PPM/1000,
			fmt.Sprintf("CO2 %.0f ppm", r.CO2PPM))
	}
}

// emit raises one alert through the manager; cooldown suppression is not an
// error.
func (d *Detector) emit(ctx context.Context, r *datastore.Reading, alertType, severity string, score float64, message string) {
	created, err := d.alerts.Create(ctx, &datastore.Alert{
		ReadingID:    r.ID,
		StationID:    r.StationID,
		Type:         alertType,
		Severity:     severity,
		Message:      message,
		AnomalyScore: score,
	})
	if err != nil {
		d.logger.Error("alert creation failed", "station", r.StationID, "type", alertType, "error", err)
		return
	}
	if created && d.metrics != nil {
		d.metrics.RecordAlertCreated(severity)
	}
}

func (d *Detector) recordCycle(start time.Time, status string) {
	if d.metrics != nil {
		d.metrics.RecordCycle(time.Since(start).Seconds(), status)
	}
}
