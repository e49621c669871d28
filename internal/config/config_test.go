package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), cfg.StartDate)
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), cfg.EndDate)
	assert.Equal(t, 3, cfg.ChunkYears)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.RetryDelay)
	assert.Equal(t, time.Second, cfg.RequestInterval)
	assert.Equal(t, 3*time.Second, cfg.StateInterval)
	assert.Equal(t, 180*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 1, cfg.Workers)
	assert.Empty(t, cfg.States)
	assert.Equal(t, "https://power.larc.nasa.gov", cfg.PowerBaseURL)
	assert.True(t, cfg.CO2Enabled)
	assert.Equal(t, "project_data/raw_data/climate", cfg.OutputDir)
	assert.False(t, cfg.ParquetEnabled)
	assert.Empty(t, cfg.SQLitePath)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "climate-monthly-records", cfg.KafkaTopic)
	assert.Empty(t, cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.SkipHealthCheck)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("START_DATE", "2000-01-01")
	t.Setenv("END_DATE", "2004-06-30")
	t.Setenv("CHUNK_YEARS", "2")
	t.Setenv("MAX_ATTEMPTS", "5")
	t.Setenv("RETRY_DELAY", "0s")
	t.Setenv("REQUEST_INTERVAL", "250ms")
	t.Setenv("STATE_INTERVAL", "0s")
	t.Setenv("REQUEST_TIMEOUT", "30s")
	t.Setenv("WORKERS", "4")
	t.Setenv("STATES", "Kaduna, Lagos,,")
	t.Setenv("CO2_ENABLED", "false")
	t.Setenv("PARQUET_ENABLED", "true")
	t.Setenv("SQLITE_PATH", "/tmp/climate.db")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "climate")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("SKIP_HEALTHCHECK", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Date(2004, 6, 30, 0, 0, 0, 0, time.UTC), cfg.EndDate)
	assert.Equal(t, 2, cfg.ChunkYears)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Zero(t, cfg.RetryDelay)
	assert.Equal(t, 250*time.Millisecond, cfg.RequestInterval)
	assert.Zero(t, cfg.StateInterval)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, []string{"Kaduna", "Lagos"}, cfg.States)
	assert.False(t, cfg.CO2Enabled)
	assert.True(t, cfg.ParquetEnabled)
	assert.Equal(t, "/tmp/climate.db", cfg.SQLitePath)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "climate", cfg.KafkaTopic)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.SkipHealthCheck)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value, wantErr string
	}{
		{"START_DATE", "1990/01/01", "START_DATE"},
		{"END_DATE", "1989-12-31", "END_DATE must not be before START_DATE"},
		{"CHUNK_YEARS", "0", "CHUNK_YEARS"},
		{"CHUNK_YEARS", "11", "CHUNK_YEARS"},
		{"MAX_ATTEMPTS", "three", "MAX_ATTEMPTS"},
		{"WORKERS", "-1", "WORKERS"},
		{"RETRY_DELAY", "soon", "RETRY_DELAY"},
		{"STATE_INTERVAL", "-3s", "STATE_INTERVAL"},
		{"REQUEST_TIMEOUT", "0s", "REQUEST_TIMEOUT"},
		{"CO2_ENABLED", "maybe", "CO2_ENABLED"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "invalid")
	_, err := Load()
	require.Error(t, err)
}
