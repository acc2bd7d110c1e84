// Package simulator generates synthetic sensor readings with a seeded
// random walk per station: a diurnal PM2.5 cycle, occasional pollution
// spikes and temperature-coupled humidity. Used by the stream feeder to
// exercise the ingestion path.
package simulator

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/scaqms/aqms-go/internal/ingest"
)

// stationState is the walk state of one simulated station.
type stationState struct {
	pm25     float64
	co2      float64
	wind     float64
	sensorID string
}

// Simulator produces candidate readings for a fixed set of station IDs.
// Deterministic for a given seed and call sequence.
type Simulator struct {
	rng      *rand.Rand
	stations []uint
	state    map[uint]*stationState
}

// New creates a simulator over the given station IDs.
func New(stationIDs []uint, seed int64) *Simulator {
	rng := rand.New(rand.NewSource(seed))
	s := &Simulator{
		rng:      rng,
		stations: stationIDs,
		state:    make(map[uint]*stationState, len(stationIDs)),
	}
	for _, id := range stationIDs {
		// Name-based sensor serials keep the stream reproducible per seed.
		serial := uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "aqms-sensor-%d", id))
		s.state[id] = &stationState{
			pm25:     5 + rng.Float64()*20,
			co2:      400 + rng.Float64()*300,
			wind:     rng.Float64() * 5,
			sensorID: serial.String(),
		}
	}
	return s
}

// spikeProbability is the per-step chance of a pollution spike.
const spikeProbability = 0.02

// Next produces one reading for a randomly chosen station at the given time.
func (s *Simulator) Next(now time.Time) ingest.Candidate {
	id := s.stations[s.rng.Intn(len(s.stations))]
	st := s.state[id]

	minute := float64(now.Hour()*60 + now.Minute())
	diurnal := 10 + 10*math.Sin(2*math.Pi*minute/1440.0)

	st.pm25 = math.Max(0, st.pm25+s.rng.NormFloat64())
	if s.rng.Float64() < spikeProbability {
		st.pm25 += 20 + s.rng.Float64()*40
	}
	st.co2 += s.rng.NormFloat64() * 5

	temp := 18 + 7*math.Sin(2*math.Pi*minute/1440.0) + s.rng.NormFloat64()*0.5
	hum := clamp(60-(temp-18)*1.2+s.rng.NormFloat64()*2, 15, 95)
	st.wind = clamp(st.wind+s.rng.NormFloat64()*0.2, 0, 12)

	return ingest.Candidate{
		StationID:    id,
		SensorID:     st.sensorID,
		Timestamp:    now,
		PM25:         st.pm25 + diurnal,
		CO2PPM:       math.Max(0, st.co2),
		TemperatureC: temp,
		HumidityPct:  hum,
		WindSpeedMS:  st.wind,
	}
}

// Batch produces n readings at the given time.
func (s *Simulator) Batch(now time.Time, n int) []ingest.Candidate {
	batch := make([]ingest.Candidate, n)
	for i := 0; i < n; i++ {
		batch[i] = s.Next(now.Add(time.Duration(i) * time.Millisecond))
	}
	return batch
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
