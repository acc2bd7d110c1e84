package ingest

import (
	"time"
)

// Physically valid ranges for each measured quantity. A reading with any
// quantity outside its hard range is rejected outright.
const (
	pm25Min = 0.0
	pm25Max = 1000.0

	co2Min = 0.0
	co2Max = 10000.0

	tempMin = -50.0
	tempMax = 60.0

	humidityMin = 0.0
	humidityMax = 100.0

	windMin = 0.0
	windMax = 75.0
)

// rejectionReason labels used on the rejected-readings metric.
const (
	reasonPM25      = "pm25_out_of_range"
	reasonCO2       = "co2_out_of_range"
	reasonTemp      = "temperature_out_of_range"
	reasonHumidity  = "humidity_out_of_range"
	reasonWind      = "wind_out_of_range"
	reasonTimestamp = "timestamp_implausible"
	reasonStation   = "missing_station"
)

// validate checks a candidate against the hard ranges and timestamp
// plausibility. It returns the empty string when the candidate is valid,
// otherwise the rejection reason.
func validate(c *Candidate, now time.Time, maxClockSkew time.Duration) string {
	switch {
	case c.StationID == 0:
		return reasonStation
	case c.PM25 < pm25Min || c.PM25 > pm25Max:
		return reasonPM25
	case c.CO2PPM < co2Min || c.CO2PPM > co2Max:
		return reasonCO2
	case c.TemperatureC < tempMin || c.TemperatureC > tempMax:
		return reasonTemp
	case c.HumidityPct < humidityMin || c.HumidityPct > humidityMax:
		return reasonHumidity
	case c.WindSpeedMS < windMin || c.WindSpeedMS > windMax:
		return reasonWind
	case c.Timestamp.After(now.Add(maxClockSkew)):
		return reasonTimestamp
	}
	return ""
}

// Soft plausibility bands. Values outside these are legal but lower the
// data-quality score.
func inSoftBand(c *Candidate) (passed, total int) {
	checks := []bool{
		c.PM25 <= 500,
		c.CO2PPM <= 5000,
		c.TemperatureC >= -40 && c.TemperatureC <= 50,
		c.HumidityPct >= 5 && c.HumidityPct <= 99,
		c.WindSpeedMS <= 40,
	}
	for _, ok := range checks {
		if ok {
			passed++
		}
	}
	return passed, len(checks)
}

// qualityScore derives a data-quality score in [0,1] from the soft
// plausibility bands, scaled by the sensor-reported confidence when present.
func qualityScore(c *Candidate) float64 {
	passed, total := inSoftBand(c)
	score := float64(passed) / float64(total)
	if c.SensorConfidence != nil {
		score *= *c.SensorConfidence
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
