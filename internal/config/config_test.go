package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8087", cfg.AdminPort)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 6*time.Minute, cfg.LockLease)
	assert.Equal(t, 10*time.Second, cfg.ScheduleJitter)
	assert.Equal(t, 4, cfg.MaxConcurrent)
	assert.Equal(t, 14*24*time.Hour, cfg.HistoryRetention)
	assert.True(t, cfg.DistributedLocking)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("POLL_INTERVAL_SECONDS", "30")
	t.Setenv("LOCK_LEASE_SECONDS", "120")
	t.Setenv("MAX_CONCURRENT_EXECUTIONS", "16")
	t.Setenv("ENABLE_DISTRIBUTED_LOCKING", "false")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 2*time.Minute, cfg.LockLease)
	assert.Equal(t, 16, cfg.MaxConcurrent)
	assert.False(t, cfg.DistributedLocking)
}

func TestFromEnvRejectsMalformedValues(t *testing.T) {
	t.Setenv("POLL_INTERVAL_SECONDS", "often")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFromEnvRejectsNonPositiveSettings(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_EXECUTIONS", "0")

	_, err := FromEnv()
	assert.Error(t, err)
}
