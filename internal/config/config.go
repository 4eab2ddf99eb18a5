// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables. The loaded value
// is immutable for the lifetime of the process; components receive it at
// construction and never consult the environment afterwards.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Rules      RulesConfig
	Processing ProcessingConfig
	Rate       RateLimitConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// RulesConfig holds SKU validation rule settings.
type RulesConfig struct {
	// Path is the YAML file defining the SKU validation rule set.
	// When the file does not exist the built-in defaults apply.
	Path string `env:"RULES_PATH" default:"config/rules.yaml"`
}

// ProcessingConfig holds sales-data processing settings.
type ProcessingConfig struct {
	// MaxFileSize is the maximum allowed upload size in bytes (default: 100MB)
	MaxFileSize int64 `env:"PROCESS_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrentRuns is the maximum number of parallel processing runs (default: 5)
	MaxConcurrentRuns int `env:"PROCESS_MAX_CONCURRENT_RUNS" default:"5"`

	// MaxWaitTime is how long to wait for a run slot (default: 30s)
	MaxWaitTime time.Duration `env:"PROCESS_MAX_WAIT_TIME" default:"30s"`

	// BatchSize is the number of rows per insert batch (default: 1000)
	BatchSize int `env:"PROCESS_BATCH_SIZE" default:"1000"`

	// Workers is the number of concurrent row-resolution workers.
	// A value of 1 processes rows sequentially. (default: 4)
	Workers int `env:"PROCESS_WORKERS" default:"4"`

	// RunTimeout is the maximum duration for a single processing run (default: 10m)
	RunTimeout time.Duration `env:"PROCESS_RUN_TIMEOUT" default:"10m"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for upload endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
