package detector

import (
	"github.com/scaqms/aqms-go/internal/datastore"
)

// Severity buckets over the maximum normalized anomaly score. Fixed
// thresholds keep the mapping deterministic and monotone: a higher score
// never yields a lower severity.
const (
	severityModerateAt = 0.25
	severityHighAt     = 0.50
	severityCriticalAt = 0.75
)

// severityFor maps a normalized anomaly score in [0,1] to a severity bucket.
func severityFor(score float64) string {
	switch {
	case score >= severityCriticalAt:
		return datastore.SeverityCritical
	case score >= severityHighAt:
		return datastore.SeverityHigh
	case score >= severityModerateAt:
		return datastore.SeverityModerate
	default:
		return datastore.SeverityLow
	}
}
