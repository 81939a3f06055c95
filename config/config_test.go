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

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "database:\n  host: localhost\n  port: 5432\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Booking.HoldTTL())
	assert.Equal(t, 30*time.Minute, cfg.Booking.PaymentTTL())
	assert.Equal(t, 30*time.Minute, cfg.Booking.SlotLength())
	assert.Equal(t, 100, cfg.Booking.BulkWarnThreshold)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Len(t, cfg.Calendar.OpenWeekdays, 7)
}

func TestLoadConfig_ExpandsEnv(t *testing.T) {
	t.Setenv("PICKUP_DB_PASSWORD", "s3cret")
	path := writeConfig(t, `
database:
  host: db
  port: 5432
  user: shop
  password: ${PICKUP_DB_PASSWORD}
  name: shop
categories:
  bread:
    - start: "07:00"
      end: "12:00"
calendar:
  open_weekdays: [1, 2, 3, 4, 5, 6]
  holidays: ["12-25"]
  overrides:
    "2025-12-28": false
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Contains(t, cfg.Database.DSN(), "password=s3cret")
	assert.Len(t, cfg.Categories["bread"], 1)
	assert.Equal(t, []string{"12-25"}, cfg.Calendar.Holidays)
	assert.False(t, cfg.Calendar.Overrides["2025-12-28"])
}

func TestLoadConfig_InvalidCategories(t *testing.T) {
	path := writeConfig(t, `
categories:
  bread:
    - start: "12:00"
      end: "07:00"
`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestAppConfig_Location(t *testing.T) {
	loc, err := AppConfig{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = AppConfig{Timezone: "Mars/Olympus"}.Location()
	assert.Error(t, err)
}
