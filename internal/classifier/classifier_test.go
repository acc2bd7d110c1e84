package classifier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scaqms/aqms-go/internal/conf"
	"github.com/scaqms/aqms-go/internal/datastore"
	"github.com/scaqms/aqms-go/internal/logging"
)

func testClassifierSettings() conf.ClassifierSettings {
	return conf.ClassifierSettings{
		Interval:     45 * time.Second,
		Window:       15 * time.Minute,
		LearningRate: 0.05,
		Seed:         42,
		CycleTimeout: 40 * time.Second,
	}
}

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

func seedStation(t *testing.T, ds datastore.Interface) datastore.Station {
	t.Helper()
	station := datastore.Station{Code: "ST-300", Name: "Test", Zone: "center", Status: datastore.StationActive}
	require.NoError(t, ds.SaveStation(&station))
	return station
}

func seedReadings(t *testing.T, ds datastore.Interface, stationID uint, n int, now time.Time) []datastore.Reading {
	t.Helper()
	var readings []datastore.Reading
	for i := 0; i < n; i++ {
		readings = append(readings, datastore.Reading{
			StationID:    stationID,
			SensorID:     "sensor-a",
			Timestamp:    now.Add(time.Duration(i-n-1) * time.Second),
			PM25:         8 + float64(i%30)*2, // spans several label buckets
			CO2PPM:       450 + float64(i%10)*5,
			TemperatureC: 20,
			HumidityPct:  50,
			WindSpeedMS:  3,
			QualityScore: 1,
		})
	}
	_, err := ds.SaveReadings(context.Background(), readings)
	require.NoError(t, err)

	stored, err := ds.GetReadingsAfter(context.Background(), stationID, time.Time{}, time.Time{})
	require.NoError(t, err)
	return stored
}

func TestLabelFor(t *testing.T) {
	assert.Equal(t, 0, labelFor(5))
	assert.Equal(t, 0, labelFor(12))
	assert.Equal(t, 1, labelFor(20))
	assert.Equal(t, 1, labelFor(35))
	assert.Equal(t, 2, labelFor(55))
	assert.Equal(t, 3, labelFor(55.1))
	assert.Equal(t, 3, labelFor(400))
}

func TestBuildFeaturesDerivesRatePerStation(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	readings := []datastore.Reading{
		{StationID: 1, Timestamp: base, PM25: 10},
		{StationID: 2, Timestamp: base, PM25: 40},
		{StationID: 1, Timestamp: base.Add(2 * time.Minute), PM25: 16},
		{StationID: 2, Timestamp: base.Add(time.Minute), PM25: 35},
	}

	features, labels := buildFeatures(readings)
	require.Len(t, features, 4)

	// First reading per station has no rate.
	assert.Zero(t, features[0][5])
	assert.Zero(t, features[1][5])
	// (16-10)/2min and (35-40)/1min, tracked independently per station.
	assert.InDelta(t, 3.0, features[2][5], 1e-9)
	assert.InDelta(t, -5.0, features[3][5], 1e-9)

	assert.Equal(t, []int{0, 3, 1, 1}, labels)
}

func TestFitBatchIsDeterministic(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	var readings []datastore.Reading
	for i := 0; i < 50; i++ {
		readings = append(readings, datastore.Reading{
			StationID: 1,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			PM25:      5 + float64(i),
			CO2PPM:    450,
		})
	}
	features, labels := buildFeatures(readings)

	a := newModelState()
	b := newModelState()
	accA := a.fitBatch(features, labels, 0.05, 7)
	accB := b.fitBatch(features, labels, 0.05, 7)

	assert.Equal(t, accA, accB)
	assert.Equal(t, a.Weights, b.Weights)
	assert.Equal(t, a.Bias, b.Bias)

	// Identical state and batch score identically.
	for i := range features {
		catA, confA, probsA := a.score(&features[i])
		catB, confB, probsB := b.score(&features[i])
		assert.Equal(t, catA, catB)
		assert.Equal(t, confA, confB)
		assert.Equal(t, probsA, probsB)
	}

	// A different shuffle seed walks a different path.
	c := newModelState()
	c.fitBatch(features, labels, 0.05, 8)
	assert.NotEqual(t, a.Weights, c.Weights)
}

func TestFitBatchLearnsLabelRule(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	var readings []datastore.Reading
	for i := 0; i < 200; i++ {
		readings = append(readings, datastore.Reading{
			StationID: 1,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			PM25:      float64(i % 80),
			CO2PPM:    450,
		})
	}
	features, labels := buildFeatures(readings)

	state := newModelState()
	var accuracy float64
	for epoch := 0; epoch < 20; epoch++ {
		accuracy = state.fitBatch(features, labels, 0.05, int64(epoch))
	}
	assert.Greater(t, accuracy, 0.6, "the model must learn the PM2.5 breakpoints")
}

func TestModelStateRoundTrip(t *testing.T) {
	state := newModelState()
	state.Version = 3
	state.Weights[1][0] = 0.5
	state.Bias[2] = -0.25
	v := [numFeatures]float64{10, 450, 20, 50, 3, 0}
	state.Scaler.update(&v)

	payload, err := state.encode()
	require.NoError(t, err)

	decoded, err := decodeModelState(payload, 3)
	require.NoError(t, err)
	assert.Equal(t, state, decoded)

	// A version mismatch between payload and checkpoint row is corruption.
	_, err = decodeModelState(payload, 4)
	assert.Error(t, err)

	_, err = decodeModelState([]byte("{not json"), 3)
	assert.Error(t, err)
}

func TestCycleTrainsScoresAndCheckpoints(t *testing.T) {
	ds := createDatabase(t)
	logger := logging.ForService("test")
	station := seedStation(t, ds)
	stored := seedReadings(t, ds, station.ID, 40, time.Now().UTC())

	clf, err := New(ds, testClassifierSettings(), nil, nil, logger)
	require.NoError(t, err)
	assert.Equal(t, int64(0), clf.Version())

	require.NoError(t, clf.Cycle(context.Background()))
	assert.Equal(t, int64(1), clf.Version())

	// Every reading in the window got exactly one prediction.
	for _, r := range stored {
		p, err := ds.GetPredictionForReading(r.ID)
		require.NoError(t, err)
		assert.Equal(t, "online-sgd-v1", p.ModelVersion)
		total := p.ProbGood + p.ProbModerate + p.ProbUnhealthy + p.ProbHazardous
		assert.InDelta(t, 1.0, total, 1e-9)
	}

	checkpoint, err := ds.LoadCheckpoint(CheckpointName)
	require.NoError(t, err)
	assert.Equal(t, int64(1), checkpoint.Version)

	wm, err := ds.GetWatermark(Consumer, station.ID)
	require.NoError(t, err)
	assert.False(t, wm.IsZero())
}

func TestCycleWithoutNewReadingsIsNoOp(t *testing.T) {
	ds := createDatabase(t)
	logger := logging.ForService("test")
	station := seedStation(t, ds)
	seedReadings(t, ds, station.ID, 10, time.Now().UTC())

	clf, err := New(ds, testClassifierSettings(), nil, nil, logger)
	require.NoError(t, err)

	require.NoError(t, clf.Cycle(context.Background()))
	require.Equal(t, int64(1), clf.Version())

	// No new readings: no version bump, no new checkpoint.
	require.NoError(t, clf.Cycle(context.Background()))
	assert.Equal(t, int64(1), clf.Version())

	checkpoint, err := ds.LoadCheckpoint(CheckpointName)
	require.NoError(t, err)
	assert.Equal(t, int64(1), checkpoint.Version)
}

func TestNewResumesFromCheckpoint(t *testing.T) {
	ds := createDatabase(t)
	logger := logging.ForService("test")
	station := seedStation(t, ds)
	seedReadings(t, ds, station.ID, 25, time.Now().UTC())

	first, err := New(ds, testClassifierSettings(), nil, nil, logger)
	require.NoError(t, err)
	require.NoError(t, first.Cycle(context.Background()))
	require.Equal(t, int64(1), first.Version())

	resumed, err := New(ds, testClassifierSettings(), nil, nil, logger)
	require.NoError(t, err)
	assert.Equal(t, int64(1), resumed.Version())
	assert.Equal(t, first.state.Weights, resumed.state.Weights)
	assert.Equal(t, first.state.Scaler, resumed.state.Scaler)
}

func TestNewRecoversFromCorruptCheckpoint(t *testing.T) {
	ds := createDatabase(t)
	logger := logging.ForService("test")

	require.NoError(t, ds.SaveCheckpoint(&datastore.ModelCheckpoint{
		Name:    CheckpointName,
		Version: 7,
		Payload: []byte("garbage"),
	}))

	clf, err := New(ds, testClassifierSettings(), nil, nil, logger)
	require.NoError(t, err, "corrupted state falls back to the safe default")
	assert.Equal(t, int64(7), clf.Version(), "the version stays monotonic across recovery")
	assert.Equal(t, newModelState().Weights, clf.state.Weights)
}
