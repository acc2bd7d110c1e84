package simulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchIsDeterministicForSeed(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	stations := []uint{1, 2, 3}

	a := New(stations, 99).Batch(now, 50)
	b := New(stations, 99).Batch(now, 50)
	require.Equal(t, a, b, "identical seeds must produce identical streams")

	c := New(stations, 100).Batch(now, 50)
	assert.NotEqual(t, a, c)
}

func TestReadingsStayWithinValidRanges(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sim := New([]uint{1, 2}, 7)

	known := map[uint]bool{1: true, 2: true}
	for i := 0; i < 500; i++ {
		c := sim.Next(now.Add(time.Duration(i) * time.Second))
		assert.True(t, known[c.StationID])
		assert.NotEmpty(t, c.SensorID)
		assert.GreaterOrEqual(t, c.PM25, 0.0)
		assert.GreaterOrEqual(t, c.CO2PPM, 0.0)
		assert.GreaterOrEqual(t, c.HumidityPct, 0.0)
		assert.LessOrEqual(t, c.HumidityPct, 100.0)
		assert.GreaterOrEqual(t, c.WindSpeedMS, 0.0)
		assert.LessOrEqual(t, c.WindSpeedMS, 75.0)
	}
}

func TestBatchSpreadsTimestamps(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	batch := New([]uint{1}, 1).Batch(now, 10)

	require.Len(t, batch, 10)
	for i := 1; i < len(batch); i++ {
		assert.True(t, batch[i].Timestamp.After(batch[i-1].Timestamp),
			"timestamps inside a batch must be unique so dedup keys differ")
	}
}
