package datastore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/scaqms/aqms-go/internal/conf"
)

// createDatabase initializes a temporary database for testing purposes.
func createDatabase(t *testing.T, settings *conf.Settings) Interface {
	t.Helper()
	tempDir := t.TempDir()
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = tempDir + "/test.db"

	dataStore := New(settings)

	require.NoError(t, dataStore.Open(), "Failed to open database")

	t.Cleanup(func() {
		assert.NoError(t, dataStore.Close(), "Failed to close datastore")
	})

	return dataStore
}

func createStation(t *testing.T, ds Interface, code, zone string) Station {
	t.Helper()
	station := Station{Code: code, Name: code, Zone: zone, Status: StationActive}
	require.NoError(t, ds.SaveStation(&station))
	return station
}

func makeReading(stationID uint, sensorID string, ts time.Time, pm25 float64) Reading {
	return Reading{
		StationID:    stationID,
		SensorID:     sensorID,
		Timestamp:    ts,
		PM25:         pm25,
		CO2PPM:       450,
		TemperatureC: 20,
		HumidityPct:  50,
		WindSpeedMS:  3,
		QualityScore: 1,
	}
}

func TestSaveReadingsDeduplicatesRetriedBatch(t *testing.T) {
	ds := createDatabase(t, &conf.Settings{})
	station := createStation(t, ds, "ST-100", "harbor")

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	batch := []Reading{
		makeReading(station.ID, "sensor-a", base, 10),
		makeReading(station.ID, "sensor-a", base.Add(time.Minute), 12),
	}

	inserted, err := ds.SaveReadings(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, int64(2), inserted)

	// A retried batch hits the (station, sensor, timestamp) dedup key and
	// inserts nothing.
	retry := []Reading{
		makeReading(station.ID, "sensor-a", base, 10),
		makeReading(station.ID, "sensor-a", base.Add(time.Minute), 12),
	}
	inserted, err = ds.SaveReadings(context.Background(), retry)
	require.NoError(t, err)
	assert.Equal(t, int64(0), inserted)

	readings, err := ds.GetReadingsAfter(context.Background(), station.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, readings, 2)
}

func TestSaveReadingsBackfillsPartition(t *testing.T) {
	ds := createDatabase(t, &conf.Settings{})
	station := createStation(t, ds, "ST-101", "harbor")

	ts := time.Date(2026, 7, 4, 8, 30, 0, 0, time.UTC)
	_, err := ds.SaveReadings(context.Background(), []Reading{
		makeReading(station.ID, "sensor-a", ts, 15),
	})
	require.NoError(t, err)

	readings, err := ds.GetReadingsAfter(context.Background(), station.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, "2026-07", readings[0].Partition)
}

func TestGetReadingsAfterBoundsAndOrder(t *testing.T) {
	ds := createDatabase(t, &conf.Settings{})
	station := createStation(t, ds, "ST-102", "center")

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	var batch []Reading
	for i := 0; i < 5; i++ {
		batch = append(batch, makeReading(station.ID, "sensor-a", base.Add(time.Duration(i)*time.Minute), float64(10+i)))
	}
	_, err := ds.SaveReadings(context.Background(), batch)
	require.NoError(t, err)

	// after is exclusive, notBefore is inclusive
	readings, err := ds.GetReadingsAfter(context.Background(), station.ID, base.Add(time.Minute), base)
	require.NoError(t, err)
	require.Len(t, readings, 3)
	for i := 1; i < len(readings); i++ {
		assert.True(t, readings[i].Timestamp.After(readings[i-1].Timestamp), "readings must be ordered by timestamp")
	}

	// notBefore trims the old edge of the window
	readings, err = ds.GetReadingsAfter(context.Background(), station.ID, time.Time{}, base.Add(3*time.Minute))
	require.NoError(t, err)
	assert.Len(t, readings, 2)
}

func TestWatermarkNeverMovesBackwards(t *testing.T) {
	ds := createDatabase(t, &conf.Settings{})
	station := createStation(t, ds, "ST-103", "center")

	// Unknown watermark reads as the zero time.
	wm, err := ds.GetWatermark("detector", station.ID)
	require.NoError(t, err)
	assert.True(t, wm.IsZero())

	ts := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, ds.AdvanceWatermark("detector", station.ID, ts))

	wm, err = ds.GetWatermark("detector", station.ID)
	require.NoError(t, err)
	assert.True(t, wm.Equal(ts))

	// Older and equal timestamps are no-ops.
	require.NoError(t, ds.AdvanceWatermark("detector", station.ID, ts.Add(-time.Hour)))
	require.NoError(t, ds.AdvanceWatermark("detector", station.ID, ts))

	wm, err = ds.GetWatermark("detector", station.ID)
	require.NoError(t, err)
	assert.True(t, wm.Equal(ts))

	// Consumers have independent watermarks.
	wm, err = ds.GetWatermark("classifier", station.ID)
	require.NoError(t, err)
	assert.True(t, wm.IsZero())
}

func TestCreateAlertIfNoneSuppressesDuplicates(t *testing.T) {
	ds := createDatabase(t, &conf.Settings{})
	station := createStation(t, ds, "ST-104", "industrial")

	alert := Alert{
		StationID: station.ID,
		Type:      "High PM2.5",
		Severity:  SeverityCritical,
		Message:   "PM2.5 above critical threshold",
		Status:    AlertOpen,
		CreatedAt: time.Now(),
	}
	created, err := ds.CreateAlertIfNone(context.Background(), &alert, 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, created)

	dup := alert
	dup.ID = 0
	created, err = ds.CreateAlertIfNone(context.Background(), &dup, 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, created, "an Open alert inside the cooldown must suppress the new one")

	count, err := ds.OpenAlertCount(station.ID, "High PM2.5", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// A different alert type for the same station is not suppressed.
	other := Alert{
		StationID: station.ID,
		Type:      "CO2 Alert",
		Severity:  SeverityModerate,
		Status:    AlertOpen,
		CreatedAt: time.Now(),
	}
	created, err = ds.CreateAlertIfNone(context.Background(), &other, 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestInsertPredictionsIgnoresExistingReading(t *testing.T) {
	ds := createDatabase(t, &conf.Settings{})
	station := createStation(t, ds, "ST-105", "harbor")

	ts := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	_, err := ds.SaveReadings(context.Background(), []Reading{
		makeReading(station.ID, "sensor-a", ts, 20),
	})
	require.NoError(t, err)
	readings, err := ds.GetReadingsAfter(context.Background(), station.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, readings, 1)

	first := Prediction{ReadingID: readings[0].ID, Category: CategoryModerate, Confidence: 0.8, ModelVersion: "online-sgd-v1"}
	inserted, err := ds.InsertPredictions(context.Background(), []Prediction{first})
	require.NoError(t, err)
	assert.Equal(t, int64(1), inserted)

	second := Prediction{ReadingID: readings[0].ID, Category: CategoryGood, Confidence: 0.9, ModelVersion: "online-sgd-v2"}
	inserted, err = ds.InsertPredictions(context.Background(), []Prediction{second})
	require.NoError(t, err)
	assert.Equal(t, int64(0), inserted, "a reading keeps its first prediction")

	got, err := ds.GetPredictionForReading(readings[0].ID)
	require.NoError(t, err)
	assert.Equal(t, CategoryModerate, got.Category)
	assert.Equal(t, "online-sgd-v1", got.ModelVersion)
}

func TestSaveCheckpointSwapsPointerAndEnforcesVersionAdvance(t *testing.T) {
	ds := createDatabase(t, &conf.Settings{})

	_, err := ds.LoadCheckpoint("online-sgd")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	v1 := ModelCheckpoint{Name: "online-sgd", Version: 1, Payload: []byte(`{"v":1}`)}
	require.NoError(t, ds.SaveCheckpoint(&v1))

	loaded, err := ds.LoadCheckpoint("online-sgd")
	require.NoError(t, err)
	assert.Equal(t, int64(1), loaded.Version)

	// Stale and equal versions are rejected.
	stale := ModelCheckpoint{Name: "online-sgd", Version: 1, Payload: []byte(`{"v":1}`)}
	assert.Error(t, ds.SaveCheckpoint(&stale))

	v2 := ModelCheckpoint{Name: "online-sgd", Version: 2, Payload: []byte(`{"v":2}`)}
	require.NoError(t, ds.SaveCheckpoint(&v2))

	loaded, err = ds.LoadCheckpoint("online-sgd")
	require.NoError(t, err)
	assert.Equal(t, int64(2), loaded.Version)
	assert.Equal(t, []byte(`{"v":2}`), loaded.Payload)
}

func TestGetZones(t *testing.T) {
	ds := createDatabase(t, &conf.Settings{})
	createStation(t, ds, "ST-106", "harbor")
	createStation(t, ds, "ST-107", "harbor")
	createStation(t, ds, "ST-108", "center")

	zones, err := ds.GetZones()
	require.NoError(t, err)
	assert.Equal(t, []string{"center", "harbor"}, zones)
}

func TestPartitionKey(t *testing.T) {
	ts := time.Date(2026, 12, 31, 23, 59, 0, 0, time.FixedZone("EET", 2*3600))
	assert.Equal(t, "2026-12", PartitionKey(ts))

	// The key follows the UTC month, not the local one.
	newYear := time.Date(2027, 1, 1, 1, 30, 0, 0, time.FixedZone("EET", 2*3600))
	assert.Equal(t, "2026-12", PartitionKey(newYear))
}
