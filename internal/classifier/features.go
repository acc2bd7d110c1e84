package classifier

import (
	"github.com/scaqms/aqms-go/internal/datastore"
)

// numFeatures is the classifier's feature vector size: the five measured
// quantities plus the PM2.5 rate-of-change derived feature.
const numFeatures = 6

// AQI category breakpoints on PM2.5, matching the label rule the online
// model trains against.
func labelFor(pm25 float64) int {
	switch {
	case pm25 <= 12:
		return 0 // Good
	case pm25 <= 35:
		return 1 // Moderate
	case pm25 <= 55:
		return 2 // Unhealthy
	default:
		return 3 // Hazardous
	}
}

// buildFeatures converts a station's time-ordered readings into feature
// vectors and derived labels. The sixth feature is the PM2.5 delta per
// minute against the previous reading of the same station; the first reading
// of a station in the batch gets zero.
func buildFeatures(readings []datastore.Reading) (features [][numFeatures]float64, labels []int) {
	features = make([][numFeatures]float64, len(readings))
	labels = make([]int, len(readings))

	prev := make(map[uint]*datastore.Reading, 8)
	for i := range readings {
		r := &readings[i]
		rate := 0.0
		if p, ok := prev[r.StationID]; ok {
			if minutes := r.Timestamp.Sub(p.Timestamp).Minutes(); minutes > 0 {
				rate = (r.PM25 - p.PM25) / minutes
			}
		}
		prev[r.StationID] = r

		features[i] = [numFeatures]float64{
			r.PM25, r.CO2PPM, r.TemperatureC, r.HumidityPct, r.WindSpeedMS, rate,
		}
		labels[i] = labelFor(r.PM25)
	}
	return features, labels
}
