package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"agrosense/pkg/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg := config.Load()

	assert.Equal(t, "mqtt", cfg.StoreBackend)
	assert.Equal(t, "DHARA", cfg.StoreRoot)
	assert.Equal(t, "Slave(", cfg.DevicePrefix)
	assert.Equal(t, "sentinel", cfg.SignalMissingPolicy)
	assert.Equal(t, -100.0, cfg.SignalSentinel)
	assert.Equal(t, 30*time.Minute, cfg.SessionGap)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.False(t, cfg.ArchiveEnabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STORE_ROOT", "FARM")
	t.Setenv("SIGNAL_MISSING_POLICY", "absent")
	t.Setenv("SIGNAL_SENTINEL", "-120")
	t.Setenv("SESSION_GAP", "10m")
	t.Setenv("CORS_ORIGINS", "http://a.local, http://b.local")
	t.Setenv("ARCHIVE_ENABLED", "true")
	t.Setenv("CONNECT_MAX_ATTEMPTS", "5")

	cfg := config.Load()

	assert.Equal(t, "FARM", cfg.StoreRoot)
	assert.Equal(t, "absent", cfg.SignalMissingPolicy)
	assert.Equal(t, -120.0, cfg.SignalSentinel)
	assert.Equal(t, 10*time.Minute, cfg.SessionGap)
	assert.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.CORSOrigins)
	assert.True(t, cfg.ArchiveEnabled)
	assert.Equal(t, 5, cfg.ConnectMaxAttempts)
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("SIGNAL_SENTINEL", "weak")
	t.Setenv("SESSION_GAP", "soon")
	t.Setenv("ARCHIVE_ENABLED", "maybe")
	t.Setenv("CONNECT_MAX_ATTEMPTS", "-3")

	cfg := config.Load()

	assert.Equal(t, -100.0, cfg.SignalSentinel)
	assert.Equal(t, 30*time.Minute, cfg.SessionGap)
	assert.False(t, cfg.ArchiveEnabled)
	assert.Equal(t, 0, cfg.ConnectMaxAttempts, "negative counts mean unlimited, not wraparound")
}

func TestLocation(t *testing.T) {
	cfg := &config.Config{Timezone: "UTC"}
	assert.Equal(t, time.UTC, cfg.Location())

	cfg.Timezone = "Not/AZone"
	assert.Equal(t, time.Local, cfg.Location())
}
