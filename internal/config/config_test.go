package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_DRIVER", "DB_PORT", "MQTT_TOPIC", "MQTT_QOS", "INGEST_DEDUP",
		"QUERY_DEFAULT_HOURS", "QUERY_MAX_HOURS", "RETENTION_PERIOD", "RETENTION_ENABLED"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, "5432", cfg.DB.Port)
	assert.Equal(t, "geo/sensors/+/+/data", cfg.MQTT.Topic)
	assert.Equal(t, 1, cfg.MQTT.QoS)
	assert.Equal(t, "none", cfg.Ingest.Dedup)
	assert.Equal(t, 24, cfg.Query.DefaultHours)
	assert.Equal(t, 672, cfg.Query.MaxHours)
	assert.Equal(t, 90*24*time.Hour, cfg.Workers.RetentionPeriod)
	assert.False(t, cfg.Workers.RetentionEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_PORT", "")
	t.Setenv("MQTT_QOS", "7")
	t.Setenv("RETENTION_PERIOD", "P30D")
	t.Setenv("WORKER_SIMULATOR_INTERVAL", "15s")
	t.Setenv("FIT_ACCEPT_R2", "0.5")
	t.Setenv("DEBUG", "true")
	t.Setenv("QUERY_MAX_HOURS", "not-a-number")

	cfg := Load()

	assert.Equal(t, "3306", cfg.DB.Port)
	assert.Equal(t, 2, cfg.MQTT.QoS)
	assert.Equal(t, 30*24*time.Hour, cfg.Workers.RetentionPeriod)
	assert.Equal(t, 15*time.Second, cfg.Workers.SimulatorInterval)
	assert.Equal(t, 0.5, cfg.Fitting.AcceptRSquared)
	assert.True(t, cfg.App.Debug)
	assert.Equal(t, 672, cfg.Query.MaxHours)
}

func TestGetEnvAsISODuration(t *testing.T) {
	t.Setenv("X_PERIOD", "PT36H")
	assert.Equal(t, 36*time.Hour, getEnvAsISODuration("X_PERIOD", time.Hour))

	t.Setenv("X_PERIOD", "720h")
	assert.Equal(t, 720*time.Hour, getEnvAsISODuration("X_PERIOD", time.Hour))

	t.Setenv("X_PERIOD", "soon")
	assert.Equal(t, time.Hour, getEnvAsISODuration("X_PERIOD", time.Hour))
}
