package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all hub configuration.
//
// Tags:
//
//	env: Environment variable name
//	envDefault: Default value if not set
type Config struct {
	// Server basics
	Addr string `env:"HUB_ADDR" envDefault:":3002"`

	// Domain event ingest (NATS). Empty disables the bridge, which leaves
	// the hub reachable only through the in-process broadcast handle.
	NATSURL       string `env:"NATS_URL" envDefault:""`
	SubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"notify"`

	// Capacity
	MaxConnections int `env:"HUB_MAX_CONNECTIONS" envDefault:"5000"`
	SendBufferSize int `env:"HUB_SEND_BUFFER" envDefault:"64"`

	// Authentication
	JWTSecret   string        `env:"HUB_JWT_SECRET" envDefault:""`
	JWTIssuer   string        `env:"HUB_JWT_ISSUER" envDefault:"hirewire-api"`
	AuthTimeout time.Duration `env:"HUB_AUTH_TIMEOUT" envDefault:"10s"`

	// Idle eviction
	ReapInterval  time.Duration `env:"HUB_REAP_INTERVAL" envDefault:"5m"`
	IdleThreshold time.Duration `env:"HUB_IDLE_THRESHOLD" envDefault:"30m"`

	// Inbound rate limiting (per connection)
	MessageBurst      int     `env:"HUB_MSG_BURST" envDefault:"100"`
	MessagesPerSecond float64 `env:"HUB_MSG_RATE" envDefault:"10"`

	// Monitoring
	MetricsInterval time.Duration `env:"METRICS_INTERVAL" envDefault:"15s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Environment
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// Load reads configuration from a .env file and environment variables.
// Priority: ENV vars > .env file > defaults.
func Load(logger *zerolog.Logger) (*Config, error) {
	// .env is a development convenience; in production the environment
	// is populated directly and the file is absent.
	if err := godotenv.Load(); err == nil && logger != nil {
		logger.Info().Msg("Loaded configuration from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("HUB_ADDR is required")
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("HUB_MAX_CONNECTIONS must be > 0, got %d", c.MaxConnections)
	}
	if c.SendBufferSize < 1 {
		return fmt.Errorf("HUB_SEND_BUFFER must be > 0, got %d", c.SendBufferSize)
	}
	if c.AuthTimeout <= 0 {
		return fmt.Errorf("HUB_AUTH_TIMEOUT must be > 0, got %s", c.AuthTimeout)
	}
	if c.ReapInterval <= 0 {
		return fmt.Errorf("HUB_REAP_INTERVAL must be > 0, got %s", c.ReapInterval)
	}
	if c.IdleThreshold <= c.ReapInterval {
		return fmt.Errorf("HUB_IDLE_THRESHOLD (%s) must be > HUB_REAP_INTERVAL (%s)",
			c.IdleThreshold, c.ReapInterval)
	}
	if c.MessagesPerSecond <= 0 {
		return fmt.Errorf("HUB_MSG_RATE must be > 0, got %.1f", c.MessagesPerSecond)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", c.LogLevel)
	}

	validLogFormats := map[string]bool{"json": true, "pretty": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, pretty (got: %s)", c.LogFormat)
	}

	return nil
}

// LogConfig logs the effective configuration using structured logging.
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("environment", c.Environment).
		Str("addr", c.Addr).
		Str("nats_url", c.NATSURL).
		Str("subject_prefix", c.SubjectPrefix).
		Int("max_connections", c.MaxConnections).
		Int("send_buffer", c.SendBufferSize).
		Dur("auth_timeout", c.AuthTimeout).
		Dur("reap_interval", c.ReapInterval).
		Dur("idle_threshold", c.IdleThreshold).
		Int("msg_burst", c.MessageBurst).
		Float64("msg_rate", c.MessagesPerSecond).
		Dur("metrics_interval", c.MetricsInterval).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Msg("Hub configuration loaded")
}
