package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/kestrelorch/kestrel/pkg/domain"
)

// Config holds all configuration for the kestrel node binary
type Config struct {
	// Server configuration
	HTTPPort int    `env:"KESTREL_HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Redis configuration
	Redis RedisConfig

	// Scheduling defaults applied to runs that carry no policy
	Scheduling SchedulingConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// SchedulingConfig holds default scheduling policy values
type SchedulingConfig struct {
	MaxRestarts    int           `env:"KESTREL_MAX_RESTARTS" envDefault:"3"`
	RestartBackoff time.Duration `env:"KESTREL_RESTART_BACKOFF" envDefault:"5s"`
	HookTimeout    time.Duration `env:"KESTREL_HOOK_TIMEOUT" envDefault:"30s"`
	StopTimeout    time.Duration `env:"KESTREL_STOP_TIMEOUT" envDefault:"30s"`
	HealthInterval time.Duration `env:"KESTREL_HEALTH_INTERVAL" envDefault:"15s"`
}

// TimeoutConfig holds process-level timeout configurations
type TimeoutConfig struct {
	StateTTL        time.Duration `env:"KESTREL_STATE_TTL" envDefault:"24h"`
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.Scheduling.MaxRestarts < 0 {
		return fmt.Errorf("max restarts must not be negative")
	}
	if c.Scheduling.HookTimeout <= 0 {
		return fmt.Errorf("hook timeout must be positive")
	}
	if c.Scheduling.StopTimeout <= 0 {
		return fmt.Errorf("stop timeout must be positive")
	}
	if c.Scheduling.HealthInterval <= 0 {
		return fmt.Errorf("health interval must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// Policy returns the default scheduling policy derived from configuration
func (c *Config) Policy() domain.SchedulingPolicy {
	return domain.SchedulingPolicy{
		MaxRestarts:    c.Scheduling.MaxRestarts,
		RestartBackoff: c.Scheduling.RestartBackoff,
		HookTimeout:    c.Scheduling.HookTimeout,
		StopTimeout:    c.Scheduling.StopTimeout,
		HealthInterval: c.Scheduling.HealthInterval,
	}
}
