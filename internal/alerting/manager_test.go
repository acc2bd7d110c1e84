package alerting

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

func newTestManager(t *testing.T) (*Manager, datastore.Interface) {
	t.Helper()
	ds := createDatabase(t)
	return NewManager(ds, 5*time.Minute, logging.ForService("test")), ds
}

func testAlert(stationID uint) *datastore.Alert {
	return &datastore.Alert{
		StationID:    stationID,
		Type:         "High PM2.5",
		Severity:     datastore.SeverityCritical,
		Message:      "PM2.5 150.0 ug/m3",
		AnomalyScore: 1,
	}
}

func TestCreateSuppressesDuplicateWithinCooldown(t *testing.T) {
	m, _ := newTestManager(t)

	created, err := m.Create(context.Background(), testAlert(1))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = m.Create(context.Background(), testAlert(1))
	require.NoError(t, err)
	assert.False(t, created)

	// Another station or another type is independent.
	created, err = m.Create(context.Background(), testAlert(2))
	require.NoError(t, err)
	assert.True(t, created)

	other := testAlert(1)
	other.Type = "CO2 Alert"
	created, err = m.Create(context.Background(), other)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestAlertLifecycle(t *testing.T) {
	m, ds := newTestManager(t)

	alert := testAlert(1)
	created, err := m.Create(context.Background(), alert)
	require.NoError(t, err)
	require.True(t, created)
	require.NotZero(t, alert.ID)

	require.NoError(t, m.Acknowledge(alert.ID))
	got, err := ds.GetAlert(alert.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.AlertAcknowledged, got.Status)

	// Acknowledge is only valid from Open.
	assert.Error(t, m.Acknowledge(alert.ID))

	require.NoError(t, m.Resolve(alert.ID))
	got, err = ds.GetAlert(alert.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.AlertResolved, got.Status)
	require.NotNil(t, got.ResolvedAt)

	// Resolved is terminal.
	assert.Error(t, m.Resolve(alert.ID))
	assert.Error(t, m.Acknowledge(alert.ID))
}

func TestCooldownReopensAfterStatusTransition(t *testing.T) {
	m, _ := newTestManager(t)

	alert := testAlert(1)
	created, err := m.Create(context.Background(), alert)
	require.NoError(t, err)
	require.True(t, created)

	// While the first alert is still Open the key stays gated.
	created, err = m.Create(context.Background(), testAlert(1))
	require.NoError(t, err)
	require.False(t, created)

	// Acknowledging clears the Open alert, so the same condition recurring
	// inside the cooldown window must raise a fresh alert.
	require.NoError(t, m.Acknowledge(alert.ID))
	created, err = m.Create(context.Background(), testAlert(1))
	require.NoError(t, err)
	assert.True(t, created)

	second := testAlert(4)
	created, err = m.Create(context.Background(), second)
	require.NoError(t, err)
	require.True(t, created)

	require.NoError(t, m.Resolve(second.ID))
	created, err = m.Create(context.Background(), testAlert(4))
	require.NoError(t, err)
	assert.True(t, created)
}

func TestResolveDirectlyFromOpen(t *testing.T) {
	m, ds := newTestManager(t)

	alert := testAlert(3)
	created, err := m.Create(context.Background(), alert)
	require.NoError(t, err)
	require.True(t, created)

	require.NoError(t, m.Resolve(alert.ID))
	got, err := ds.GetAlert(alert.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.AlertResolved, got.Status)
}
