// model.go this code defines the data model for the application
package datastore

import (
	"time"
)

// Station status values. A station is immutable once created except for
// status and last-seen timestamp.
const (
	StationActive      = "active"
	StationMaintenance = "maintenance"
	StationRetired     = "retired"
)

// Alert severity values, ordered Low < Moderate < High < Critical.
const (
	SeverityLow      = "Low"
	SeverityModerate = "Moderate"
	SeverityHigh     = "High"
	SeverityCritical = "Critical"
)

// Alert status values.
const (
	AlertOpen         = "Open"
	AlertAcknowledged = "Acknowledged"
	AlertResolved     = "Resolved"
)

// AQI categories, ordered Good < Moderate < Unhealthy < Hazardous.
const (
	CategoryGood      = "Good"
	CategoryModerate  = "Moderate"
	CategoryUnhealthy = "Unhealthy"
	CategoryHazardous = "Hazardous"
)

// Station represents a monitoring station in a geographic zone
type Station struct {
	ID         uint   `gorm:"primaryKey"`
	Code       string `gorm:"uniqueIndex;not null"` // e.g. ST001
	Name       string
	Zone       string `gorm:"index:idx_stations_zone"`
	Latitude   float64
	Longitude  float64
	Status     string `gorm:"type:varchar(20);default:active"`
	LastSeenAt time.Time
	CreatedAt  time.Time
}

// Reading represents a single sensor observation. Immutable once written.
// The (station, sensor, timestamp) triple is the natural dedup key that
// makes batch retries idempotent.
type Reading struct {
	ID           uint      `gorm:"primaryKey"`
	StationID    uint      `gorm:"not null;index:idx_readings_station_ts;uniqueIndex:idx_readings_dedup"`
	SensorID     string    `gorm:"uniqueIndex:idx_readings_dedup"`
	Timestamp    time.Time `gorm:"not null;index:idx_readings_station_ts;uniqueIndex:idx_readings_dedup"`
	Partition    string    `gorm:"type:varchar(7);index:idx_readings_partition"` // coarse month key, YYYY-MM
	PM25         float64
	CO2PPM       float64
	TemperatureC float64
	HumidityPct  float64
	WindSpeedMS  float64
	QualityScore float64
	CreatedAt    time.Time
}

// PartitionKey returns the coarse time-partition key for a timestamp.
func PartitionKey(ts time.Time) string {
	return ts.UTC().Format("2006-01")
}

// Alert represents an anomaly alert raised for a reading. Severity is fixed
// at creation; only status transitions afterwards.
type Alert struct {
	ID           uint   `gorm:"primaryKey"`
	ReadingID    uint   `gorm:"index"`
	StationID    uint   `gorm:"not null;index:idx_alerts_station_type"`
	Type         string `gorm:"type:varchar(50);not null;index:idx_alerts_station_type"`
	Severity     string `gorm:"type:varchar(20);not null;index:idx_alerts_severity"`
	Status       string `gorm:"type:varchar(20);not null;default:Open;index"`
	Message      string `gorm:"type:text"`
	AnomalyScore float64
	CreatedAt    time.Time `gorm:"index"`
	ResolvedAt   *time.Time
}

// Prediction represents the classifier's output for a single reading.
// At most one prediction exists per reading. Immutable once written.
type Prediction struct {
	ID            uint   `gorm:"primaryKey"`
	ReadingID     uint   `gorm:"uniqueIndex;not null"`
	StationID     uint   `gorm:"index"`
	Category      string `gorm:"type:varchar(20);not null"`
	Confidence    float64
	ProbGood      float64
	ProbModerate  float64
	ProbUnhealthy float64
	ProbHazardous float64
	ModelVersion  string `gorm:"type:varchar(32)"`
	CreatedAt     time.Time
}

// ModelCheckpoint holds a serialized classifier state. Checkpoints are
// written as new rows; ModelPointer is swapped to the new row in the same
// transaction so a crash mid-update never leaves a torn state.
type ModelCheckpoint struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"index;not null"`
	Version   int64  `gorm:"not null"`
	Payload   []byte `gorm:"type:blob"`
	CreatedAt time.Time
}

// ModelPointer points at the current checkpoint for a named model. Singleton
// per model name.
type ModelPointer struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"uniqueIndex;not null"`
	CheckpointID uint   `gorm:"not null"`
	UpdatedAt    time.Time
}

// Watermark marks the latest reading timestamp already processed by one
// consumer for one station. Monotonic, never moved backwards.
type Watermark struct {
	ID        uint   `gorm:"primaryKey"`
	Consumer  string `gorm:"uniqueIndex:idx_watermark_consumer_station;not null"`
	StationID uint   `gorm:"uniqueIndex:idx_watermark_consumer_station;not null"`
	LastTS    time.Time
	UpdatedAt time.Time
}

// SystemMetric is one append-only metric sample row.
type SystemMetric struct {
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"type:varchar(64);index;not null"`
	Value      float64
	Unit       string `gorm:"type:varchar(20)"`
	StationID  *uint  `gorm:"index"`
	RecordedAt time.Time `gorm:"index"`
}
