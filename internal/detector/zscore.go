package detector

import (
	"math"

	"github.com/scaqms/aqms-go/internal/datastore"
)

// featureCount is the size of the measured-quantity vector scored by the
// detector methods: PM2.5, CO2, temperature, humidity, wind speed.
const featureCount = 5

// featureVector extracts the detector's feature vector from a reading.
func featureVector(r *datastore.Reading) [featureCount]float64 {
	return [featureCount]float64{r.PM25, r.CO2PPM, r.TemperatureC, r.HumidityPct, r.WindSpeedMS}
}

// rollingStats maintains per-feature running mean and variance for one zone
// using Welford's algorithm, so cycles never revisit historical readings.
type rollingStats struct {
	count int64
	mean  [featureCount]float64
	m2    [featureCount]float64
}

// update folds one reading into the running statistics.
func (s *rollingStats) update(r *datastore.Reading) {
	s.count++
	v := featureVector(r)
	for i := 0; i < featureCount; i++ {
		delta := v[i] - s.mean[i]
		s.mean[i] += delta / float64(s.count)
		s.m2[i] += delta * (v[i] - s.mean[i])
	}
}

// stddev returns the running standard deviation of one feature.
func (s *rollingStats) stddev(i int) float64 {
	if s.count < 2 {
		return 0
	}
	return math.Sqrt(s.m2[i] / float64(s.count))
}

// zscoreThreshold is the |z| value above which the statistical method flags
// a reading; zscoreCeiling maps |z| onto a [0,1] normalized score.
const (
	zscoreThreshold = 3.0
	zscoreCeiling   = 6.0
)

// zscoreMethod scores readings against the zone's rolling per-feature
// statistics. It needs at least two prior observations to produce a usable
// standard deviation; before that everything scores zero.
type zscoreMethod struct {
	stats *rollingStats
}

// score returns the normalized anomaly score in [0,1] for one reading,
// using the maximum per-feature |z| against the current rolling statistics.
// The reading is folded into the statistics after scoring.
func (m *zscoreMethod) score(r *datastore.Reading) float64 {
	v := featureVector(r)
	maxZ := 0.0
	for i := 0; i < featureCount; i++ {
		sd := m.stats.stddev(i)
		if sd == 0 {
			continue
		}
		z := math.Abs((v[i] - m.stats.mean[i]) / sd)
		if z > maxZ {
			maxZ = z
		}
	}
	m.stats.update(r)

	return math.Min(maxZ/zscoreCeiling, 1.0)
}

// flagged reports whether a normalized z-score crosses the flag threshold.
func (m *zscoreMethod) flagged(normalized float64) bool {
	return normalized*zscoreCeiling > zscoreThreshold
}
