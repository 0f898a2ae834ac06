package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Scheduling.MaxRestarts)
	assert.Equal(t, 5*time.Second, cfg.Scheduling.RestartBackoff)
	assert.Equal(t, 30*time.Second, cfg.Scheduling.HookTimeout)
	assert.Equal(t, 30*time.Second, cfg.Scheduling.StopTimeout)
	assert.Equal(t, 15*time.Second, cfg.Scheduling.HealthInterval)
	assert.Equal(t, 24*time.Hour, cfg.Timeouts.StateTTL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("KESTREL_HTTP_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("KESTREL_MAX_RESTARTS", "5")
	t.Setenv("KESTREL_HEALTH_INTERVAL", "1s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 5, cfg.Scheduling.MaxRestarts)
	assert.Equal(t, time.Second, cfg.Scheduling.HealthInterval)
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	t.Setenv("KESTREL_HTTP_PORT", "70000")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsNonPositiveTimeouts(t *testing.T) {
	t.Setenv("KESTREL_HOOK_TIMEOUT", "0s")

	_, err := Load()
	require.Error(t, err)
}

func TestGetHTTPAddr(t *testing.T) {
	cfg := &Config{HTTPPort: 8080}
	assert.Equal(t, ":8080", cfg.GetHTTPAddr())
}

func TestPolicyFromConfig(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	policy := cfg.Policy()
	assert.Equal(t, cfg.Scheduling.MaxRestarts, policy.MaxRestarts)
	assert.Equal(t, cfg.Scheduling.RestartBackoff, policy.RestartBackoff)
	assert.Equal(t, cfg.Scheduling.HookTimeout, policy.HookTimeout)
	assert.Equal(t, cfg.Scheduling.StopTimeout, policy.StopTimeout)
	assert.Equal(t, cfg.Scheduling.HealthInterval, policy.HealthInterval)
}
