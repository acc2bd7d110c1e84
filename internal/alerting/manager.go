// Package alerting owns the alert lifecycle: creation with cooldown-based
// dedup, acknowledgment and resolution.
package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/scaqms/aqms-go/internal/datastore"
)

// Manager owns alert creation and status transitions. Creation suppresses
// duplicate Open alerts for the same (station, type) inside the cooldown
// window; the authoritative check-and-insert runs in one store transaction,
// the local cache only short-circuits obvious repeats cheaply.
type Manager struct {
	ds       datastore.Interface
	cooldown time.Duration
	recent   *gocache.Cache
	logger   *slog.Logger
}

// NewManager creates an alert manager with the given cooldown window.
func NewManager(ds datastore.Interface, cooldown time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		ds:       ds,
		cooldown: cooldown,
		recent:   gocache.New(cooldown, 2*cooldown),
		logger:   logger,
	}
}

func cooldownKey(stationID uint, alertType string) string {
	return fmt.Sprintf("%d|%s", stationID, alertType)
}

// Create raises an alert unless one is already Open for the same (station,
// type) within the cooldown window. Returns true when the alert was written.
func (m *Manager) Create(ctx context.Context, alert *datastore.Alert) (bool, error) {
	key := cooldownKey(alert.StationID, alert.Type)
	if _, suppressed := m.recent.Get(key); suppressed {
		return false, nil
	}

	alert.Status = datastore.AlertOpen
	alert.CreatedAt = time.Now()

	created, err := m.ds.CreateAlertIfNone(ctx, alert, m.cooldown)
	if err != nil {
		return false, fmt.Errorf("creating alert: %w", err)
	}

	// Cache regardless of which process won the insert race: either way an
	// Open alert now exists for this key.
	m.recent.Set(key, struct{}{}, m.cooldown)

	if created {
		code := ""
		if station, stErr := m.ds.GetStation(alert.StationID); stErr == nil {
			code = station.Code
		}
		m.logger.Info("alert created",
			"station", alert.StationID, "station_code", code, "type", alert.Type,
			"severity", alert.Severity, "score", alert.AnomalyScore)
	}
	return created, nil
}

// Acknowledge transitions an Open alert to Acknowledged.
func (m *Manager) Acknowledge(id uint) error {
	alert, err := m.ds.GetAlert(id)
	if err != nil {
		return err
	}
	if alert.Status != datastore.AlertOpen {
		return fmt.Errorf("cannot acknowledge alert %d in status %s", id, alert.Status)
	}
	if err := m.ds.UpdateAlertStatus(id, datastore.AlertAcknowledged, nil); err != nil {
		return err
	}
	// Once no alert is Open for this key the cooldown gate must reopen so a
	// recurring condition can raise a fresh alert.
	m.recent.Delete(cooldownKey(alert.StationID, alert.Type))
	return nil
}

// Resolve transitions an Open or Acknowledged alert to Resolved. There is no
// transition out of Resolved.
func (m *Manager) Resolve(id uint) error {
	alert, err := m.ds.GetAlert(id)
	if err != nil {
		return err
	}
	if alert.Status == datastore.AlertResolved {
		return fmt.Errorf("alert %d is already resolved", id)
	}
	now := time.Now()
	if err := m.ds.UpdateAlertStatus(id, datastore.AlertResolved, &now); err != nil {
		return err
	}
	m.recent.Delete(cooldownKey(alert.StationID, alert.Type))
	return nil
}
