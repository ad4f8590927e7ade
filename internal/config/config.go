// Package config parses application configuration from QEXEC_* environment
// variables using caarlos0/env/v11 and builds the structured logger.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// envPrefix is prepended to every variable name below.
const envPrefix = "QEXEC_"

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	DBPath     string `env:"DB_PATH"     envDefault:"qexec.db"`
	LogLevel   string `env:"LOG_LEVEL"   envDefault:"info"`

	// PoolWorkers bounds concurrently running jobs. Zero means one per CPU.
	PoolWorkers int `env:"POOL_WORKERS" envDefault:"0"`

	// DummyTimeAlive is how long jobs on the dummy simulator run.
	DummyTimeAlive time.Duration `env:"DUMMY_TIME_ALIVE" envDefault:"10s"`

	// Job submissions per second accepted by the API, with bursts up to
	// SubmitBurst.
	SubmitRate  float64 `env:"SUBMIT_RATE"  envDefault:"50"`
	SubmitBurst int     `env:"SUBMIT_BURST" envDefault:"100"`

	// MaxResultWait caps the ?timeout= of the result endpoint.
	MaxResultWait time.Duration `env:"MAX_RESULT_WAIT" envDefault:"30s"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Load reads configuration from environment variables with sensible defaults.
// Malformed or out-of-range values return an error.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.PoolWorkers < 0 {
		errs = append(errs, fmt.Errorf("%sPOOL_WORKERS must not be negative, got %d", envPrefix, c.PoolWorkers))
	}
	if c.DummyTimeAlive < 0 {
		errs = append(errs, fmt.Errorf("%sDUMMY_TIME_ALIVE must not be negative, got %v", envPrefix, c.DummyTimeAlive))
	}
	if c.SubmitRate <= 0 {
		errs = append(errs, fmt.Errorf("%sSUBMIT_RATE must be positive, got %v", envPrefix, c.SubmitRate))
	}
	if c.SubmitBurst <= 0 {
		errs = append(errs, fmt.Errorf("%sSUBMIT_BURST must be positive, got %d", envPrefix, c.SubmitBurst))
	}
	if c.MaxResultWait <= 0 {
		errs = append(errs, fmt.Errorf("%sMAX_RESULT_WAIT must be positive, got %v", envPrefix, c.MaxResultWait))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%sSHUTDOWN_TIMEOUT must be positive, got %v", envPrefix, c.ShutdownTimeout))
	}
	return errors.Join(errs...)
}

// Level returns the configured log level.
func (c *Config) Level() slog.Level {
	return parseLogLevel(c.LogLevel)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
