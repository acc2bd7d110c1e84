package window

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scaqms/aqms-go/internal/conf"
	"github.com/scaqms/aqms-go/internal/datastore"
)

func createDatabase(t *testing.T) datastore.Interface {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = t.TempDir() + "/test.db"

	ds := datastore.New(settings)
	require.NoError(t, ds.Open(), "Failed to open database")
	t.Cleanup(func() {
		assert.NoError(t, ds.Close(), "Failed to close datastore")
	})
	return ds
}

func seedReadings(t *testing.T, ds datastore.Interface, stationID uint, base time.Time, n int) {
	t.Helper()
	var readings []datastore.Reading
	for i := 0; i < n; i++ {
		readings = append(readings, datastore.Reading{
			StationID: stationID,
			SensorID:  "sensor-a",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			PM25:      10,
		})
	}
	_, err := ds.SaveReadings(context.Background(), readings)
	require.NoError(t, err)
}

func TestNextServesOnlyUnprocessedReadings(t *testing.T) {
	ds := createDatabase(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	r := NewReader(ds, "detector", 15*time.Minute)
	r.now = func() time.Time { return now }

	seedReadings(t, ds, 1, now.Add(-10*time.Minute), 10)

	first, err := r.Next(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, first, 10)

	require.NoError(t, r.Commit(1, first[len(first)-1].Timestamp))

	// Nothing new since the watermark.
	second, err := r.Next(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, second, "an empty window is not a fault")

	// A new reading after the watermark is served on the next cycle.
	seedReadings(t, ds, 1, now.Add(time.Minute), 1)
	third, err := r.Next(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, third, 1)
	assert.True(t, third[0].Timestamp.After(first[len(first)-1].Timestamp))
}

func TestNextBoundsWindowToTrailingDuration(t *testing.T) {
	ds := createDatabase(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	r := NewReader(ds, "detector", 15*time.Minute)
	r.now = func() time.Time { return now }

	// Five readings older than the trailing window, five inside it.
	seedReadings(t, ds, 1, now.Add(-30*time.Minute), 5)
	seedReadings(t, ds, 1, now.Add(-10*time.Minute), 5)

	readings, err := r.Next(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, readings, 5, "readings older than the trailing window are not served")
	for _, reading := range readings {
		assert.False(t, reading.Timestamp.Before(now.Add(-15*time.Minute)))
	}
}

func TestConsumersProgressIndependently(t *testing.T) {
	ds := createDatabase(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	det := NewReader(ds, "detector", 15*time.Minute)
	det.now = func() time.Time { return now }
	clf := NewReader(ds, "classifier", 15*time.Minute)
	clf.now = func() time.Time { return now }

	seedReadings(t, ds, 1, now.Add(-10*time.Minute), 5)

	detReadings, err := det.Next(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, detReadings, 5)
	require.NoError(t, det.Commit(1, detReadings[len(detReadings)-1].Timestamp))

	// The detector's progress does not consume the classifier's window.
	clfReadings, err := clf.Next(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, clfReadings, 5)
}

func TestCommitNeverMovesBackwards(t *testing.T) {
	ds := createDatabase(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	r := NewReader(ds, "detector", 15*time.Minute)
	r.now = func() time.Time { return now }

	require.NoError(t, r.Commit(1, now))
	require.NoError(t, r.Commit(1, now.Add(-time.Hour)))

	wm, err := ds.GetWatermark("detector", 1)
	require.NoError(t, err)
	assert.True(t, wm.Equal(now))
}
