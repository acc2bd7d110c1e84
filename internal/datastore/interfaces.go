// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/scaqms/aqms-go/internal/conf"
)

// Interface abstracts the underlying database implementation and defines the
// operations the pipeline needs.
type Interface interface {
	Open() error
	Close() error

	// stations
	SaveStation(station *Station) error
	GetStation(id uint) (Station, error)
	GetAllStations() ([]Station, error)
	GetStationsByZone(zone string) ([]Station, error)
	GetZones() ([]string, error)
	UpdateStationLastSeen(id uint, ts time.Time) error

	// readings
	SaveReadings(ctx context.Context, readings []Reading) (int64, error)
	GetReadingsAfter(ctx context.Context, stationID uint, after, notBefore time.Time) ([]Reading, error)

	// watermarks
	GetWatermark(consumer string, stationID uint) (time.Time, error)
	AdvanceWatermark(consumer string, stationID uint, ts time.Time) error

	// alerts
	CreateAlertIfNone(ctx context.Context, alert *Alert, cooldown time.Duration) (bool, error)
	GetAlert(id uint) (Alert, error)
	UpdateAlertStatus(id uint, status string, resolvedAt *time.Time) error
	OpenAlertCount(stationID uint, alertType string, since time.Time) (int64, error)

	// predictions
	InsertPredictions(ctx context.Context, predictions []Prediction) (int64, error)
	GetPredictionForReading(readingID uint) (Prediction, error)

	// model checkpoints
	LoadCheckpoint(name string) (*ModelCheckpoint, error)
	SaveCheckpoint(checkpoint *ModelCheckpoint) error

	// system metrics
	InsertSystemMetrics(metrics []SystemMetric) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new store instance based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

// SaveStation inserts or updates a station.
func (ds *DataStore) SaveStation(station *Station) error {
	if err := ds.DB.Save(station).Error; err != nil {
		return fmt.Errorf("saving station %s: %w", station.Code, err)
	}
	return nil
}

// GetStation retrieves a station by its ID.
func (ds *DataStore) GetStation(id uint) (Station, error) {
	var station Station
	if err := ds.DB.First(&station, id).Error; err != nil {
		return Station{}, fmt.Errorf("getting station with ID %d: %w", id, err)
	}
	return station, nil
}

// GetAllStations retrieves all stations.
func (ds *DataStore) GetAllStations() ([]Station, error) {
	var stations []Station
	if err := ds.DB.Order("id ASC").Find(&stations).Error; err != nil {
		return nil, fmt.Errorf("error getting stations: %w", err)
	}
	return stations, nil
}

// GetStationsByZone retrieves the stations of one zone.
func (ds *DataStore) GetStationsByZone(zone string) ([]Station, error) {
	var stations []Station
	if err := ds.DB.Where("zone = ?", zone).Order("id ASC").Find(&stations).Error; err != nil {
		return nil, fmt.Errorf("error getting stations for zone %s: %w", zone, err)
	}
	return stations, nil
}

// GetZones returns the distinct zones with at least one station.
func (ds *DataStore) GetZones() ([]string, error) {
	var zones []string
	err := ds.DB.Model(&Station{}).
		Distinct("zone").
		Order("zone ASC").
		Pluck("zone", &zones).Error
	if err != nil {
		return nil, fmt.Errorf("error getting zones: %w", err)
	}
	return zones, nil
}

// UpdateStationLastSeen bumps a station's last-seen timestamp.
func (ds *DataStore) UpdateStationLastSeen(id uint, ts time.Time) error {
	if err := ds.DB.Model(&Station{}).Where("id = ?", id).Update("last_seen_at", ts).Error; err != nil {
		return fmt.Errorf("updating last seen for station %d: %w", id, err)
	}
	return nil
}

// SaveReadings stores a batch of readings as a single transaction. Rows that
// collide on the (station, sensor, timestamp) dedup key are silently skipped
// so retried batches stay idempotent. Returns the number of rows inserted.
func (ds *DataStore) SaveReadings(ctx context.Context, readings []Reading) (int64, error) {
	if len(readings) == 0 {
		return 0, nil
	}

	for i := range readings {
		if readings[i].Partition == "" {
			readings[i].Partition = PartitionKey(readings[i].Timestamp)
		}
	}

	var inserted int64
	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&readings)
		if result.Error != nil {
			return fmt.Errorf("saving readings batch: %w", result.Error)
		}
		inserted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// GetReadingsAfter returns the readings of one station with timestamp
// strictly greater than after and not older than notBefore, ordered by
// timestamp ascending.
func (ds *DataStore) GetReadingsAfter(ctx context.Context, stationID uint, after, notBefore time.Time) ([]Reading, error) {
	var readings []Reading
	err := ds.DB.WithContext(ctx).
		Where("station_id = ? AND timestamp > ? AND timestamp >= ?", stationID, after, notBefore).
		Order("timestamp ASC, id ASC").
		Find(&readings).Error
	if err != nil {
		return nil, fmt.Errorf("error getting readings for station %d: %w", stationID, err)
	}
	return readings, nil
}

// GetWatermark returns the last-processed timestamp for a (consumer,
// station) pair, the zero time if none exists yet.
func (ds *DataStore) GetWatermark(consumer string, stationID uint) (time.Time, error) {
	var wm Watermark
	err := ds.DB.Where("consumer = ? AND station_id = ?", consumer, stationID).First(&wm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("getting watermark for %s/%d: %w", consumer, stationID, err)
	}
	return wm.LastTS, nil
}

// AdvanceWatermark moves a watermark forward. A timestamp at or before the
// current watermark is a no-op; watermarks never move backwards.
func (ds *DataStore) AdvanceWatermark(consumer string, stationID uint, ts time.Time) error {
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		var wm Watermark
		err := tx.Where("consumer = ? AND station_id = ?", consumer, stationID).First(&wm).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			wm = Watermark{Consumer: consumer, StationID: stationID, LastTS: ts}
			if err := tx.Create(&wm).Error; err != nil {
				return fmt.Errorf("creating watermark for %s/%d: %w", consumer, stationID, err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("reading watermark for %s/%d: %w", consumer, stationID, err)
		}

		if !ts.After(wm.LastTS) {
			return nil
		}
		if err := tx.Model(&wm).Update("last_ts", ts).Error; err != nil {
			return fmt.Errorf("advancing watermark for %s/%d: %w", consumer, stationID, err)
		}
		return nil
	})
}

// CreateAlertIfNone inserts the alert unless an Open alert for the same
// (station, type) already exists inside the cooldown window. The check and
// the insert run in one transaction so concurrent detector ticks cannot
// create duplicate Opens. Returns true when the alert was created.
func (ds *DataStore) CreateAlertIfNone(ctx context.Context, alert *Alert, cooldown time.Duration) (bool, error) {
	created := false
	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		since := time.Now().Add(-cooldown)
		err := tx.Model(&Alert{}).
			Where("station_id = ? AND type = ? AND status = ? AND created_at > ?",
				alert.StationID, alert.Type, AlertOpen, since).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("checking open alerts for station %d: %w", alert.StationID, err)
		}
		if count > 0 {
			return nil
		}
		if err := tx.Create(alert).Error; err != nil {
			return fmt.Errorf("creating alert for station %d: %w", alert.StationID, err)
		}
		created = true
		return nil
	})
	return created, err
}

// GetAlert retrieves an alert by its ID.
func (ds *DataStore) GetAlert(id uint) (Alert, error) {
	var alert Alert
	if err := ds.DB.First(&alert, id).Error; err != nil {
		return Alert{}, fmt.Errorf("getting alert with ID %d: %w", id, err)
	}
	return alert, nil
}

// UpdateAlertStatus sets an alert's status and optional resolution time.
func (ds *DataStore) UpdateAlertStatus(id uint, status string, resolvedAt *time.Time) error {
	updates := map[string]any{"status": status}
	if resolvedAt != nil {
		updates["resolved_at"] = resolvedAt
	}
	if err := ds.DB.Model(&Alert{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("updating alert %d status: %w", id, err)
	}
	return nil
}

// OpenAlertCount counts Open alerts for a (station, type) created after since.
func (ds *DataStore) OpenAlertCount(stationID uint, alertType string, since time.Time) (int64, error) {
	var count int64
	err := ds.DB.Model(&Alert{}).
		Where("station_id = ? AND type = ? AND status = ? AND created_at > ?",
			stationID, alertType, AlertOpen, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting open alerts: %w", err)
	}
	return count, nil
}

// InsertPredictions stores predictions, ignoring rows whose reading already
// has one. Returns the number of rows inserted.
func (ds *DataStore) InsertPredictions(ctx context.Context, predictions []Prediction) (int64, error) {
	if len(predictions) == 0 {
		return 0, nil
	}
	result := ds.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&predictions)
	if result.Error != nil {
		return 0, fmt.Errorf("inserting predictions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// GetPredictionForReading retrieves the prediction for a reading.
func (ds *DataStore) GetPredictionForReading(readingID uint) (Prediction, error) {
	var prediction Prediction
	if err := ds.DB.Where("reading_id = ?", readingID).First(&prediction).Error; err != nil {
		return Prediction{}, fmt.Errorf("getting prediction for reading %d: %w", readingID, err)
	}
	return prediction, nil
}

// LoadCheckpoint returns the checkpoint the model pointer currently points
// at, or gorm.ErrRecordNotFound when no checkpoint has been persisted.
func (ds *DataStore) LoadCheckpoint(name string) (*ModelCheckpoint, error) {
	var pointer ModelPointer
	if err := ds.DB.Where("name = ?", name).First(&pointer).Error; err != nil {
		return nil, err
	}
	var checkpoint ModelCheckpoint
	if err := ds.DB.First(&checkpoint, pointer.CheckpointID).Error; err != nil {
		return nil, fmt.Errorf("loading checkpoint %d for model %s: %w", pointer.CheckpointID, name, err)
	}
	return &checkpoint, nil
}

// SaveCheckpoint persists a new checkpoint row and swaps the model pointer
// to it in the same transaction (write-new-then-swap). The new version must
// be strictly greater than the current one.
func (ds *DataStore) SaveCheckpoint(checkpoint *ModelCheckpoint) error {
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		var pointer ModelPointer
		err := tx.Where("name = ?", checkpoint.Name).First(&pointer).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("reading model pointer for %s: %w", checkpoint.Name, err)
		}

		if err == nil {
			var current ModelCheckpoint
			if err := tx.First(&current, pointer.CheckpointID).Error; err != nil {
				return fmt.Errorf("reading current checkpoint for %s: %w", checkpoint.Name, err)
			}
			if checkpoint.Version <= current.Version {
				return fmt.Errorf("checkpoint version %d does not advance current version %d",
					checkpoint.Version, current.Version)
			}
		}

		if err := tx.Create(checkpoint).Error; err != nil {
			return fmt.Errorf("writing checkpoint for %s: %w", checkpoint.Name, err)
		}

		if pointer.ID == 0 {
			pointer = ModelPointer{Name: checkpoint.Name, CheckpointID: checkpoint.ID}
			if err := tx.Create(&pointer).Error; err != nil {
				return fmt.Errorf("creating model pointer for %s: %w", checkpoint.Name, err)
			}
			return nil
		}
		if err := tx.Model(&pointer).Update("checkpoint_id", checkpoint.ID).Error; err != nil {
			return fmt.Errorf("swapping model pointer for %s: %w", checkpoint.Name, err)
		}
		return nil
	})
}

// InsertSystemMetrics appends metric sample rows.
func (ds *DataStore) InsertSystemMetrics(metrics []SystemMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	if err := ds.DB.Create(&metrics).Error; err != nil {
		return fmt.Errorf("inserting system metrics: %w", err)
	}
	return nil
}

// performAutoMigration automates database migrations with error handling.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(
		&Station{}, &Reading{}, &Alert{}, &Prediction{},
		&ModelCheckpoint{}, &ModelPointer{}, &Watermark{}, &SystemMetric{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}

	return nil
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      logger.Warn,
			Colorful:      true,
		},
	)
}
