package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, time.Hour, cfg.Scheduler.ReminderWindow)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.SweepInterval)
	assert.Equal(t, 15*time.Minute, cfg.Booking.MinDuration)
	assert.Equal(t, DefaultRooms, cfg.Booking.Rooms)
	assert.Equal(t, 15*time.Second, cfg.Notifier.SendTimeout)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
}

func TestLoad_ExplicitValues(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
  dsn: file::memory:
scheduler:
  timezone: Asia/Jakarta
  reminder_window_minutes: 30
  sweep_interval_seconds: 10
booking:
  rooms: ["Ruang A", "Ruang B"]
  min_duration_minutes: 30
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "Asia/Jakarta", cfg.Scheduler.Timezone)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.ReminderWindow)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.SweepInterval)
	assert.Equal(t, []string{"Ruang A", "Ruang B"}, cfg.Booking.Rooms)
	assert.Equal(t, 30*time.Minute, cfg.Booking.MinDuration)
}

func TestLoad_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("WA_GATEWAY_TOKEN", "secret-token")
	t.Setenv("DATABASE_DSN", "postgres://override")
	path := writeConfig(t, "notifier:\n  token: from-file\ndatabase:\n  dsn: from-file\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret-token", cfg.Notifier.Token)
	assert.Equal(t, "postgres://override", cfg.Database.DSN)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
