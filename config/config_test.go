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

	assert.Equal(t, "clover", cfg.AppName)
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.RetryDelay)
	assert.Equal(t, []int{2023, 2024, 2025}, cfg.Years)
	assert.Equal(t, []string{"fbs", "fcs"}, cfg.Classifications)
	assert.Empty(t, cfg.Weeks)
	assert.False(t, cfg.ReplaceProduction)
	assert.Equal(t, 1, cfg.ExtractionConcurrency)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("RETRY_DELAY", "250ms")
	t.Setenv("ETL_YEARS", "2022")
	t.Setenv("ETL_WEEKS", "1,2")
	t.Setenv("ETL_SKIP_STAGING_CLEANUP", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.RetryMaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, []int{2022}, cfg.Years)
	assert.Equal(t, []int{1, 2}, cfg.Weeks)
	assert.True(t, cfg.SkipStagingCleanup)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DatabaseHost:     "db",
		DatabasePort:     "5432",
		DatabaseUserName: "etl",
		DatabasePassword: "secret",
		DatabaseName:     "cfb",
		DatabaseSSLMode:  "disable",
	}
	assert.Equal(t, "host=db port=5432 user=etl password=secret dbname=cfb sslmode=disable", cfg.DatabaseDSN())
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("ETL_YEARS", "2024,next")

	_, err := Load()
	assert.Error(t, err)
}
