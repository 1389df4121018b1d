// Package config holds the server settings read from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/MJE43/mogwai-breed-go/internal/engine"
)

// Config is the mogbreed server configuration.
type Config struct {
	Addr          string        `env:"MOGBREED_ADDR" envDefault:":8080"`
	StoreEnabled  bool          `env:"MOGBREED_STORE_ENABLED" envDefault:"true"`
	DBPath        string        `env:"MOGBREED_DB_PATH" envDefault:"mogbreed.db"`
	LogLevel      string        `env:"MOGBREED_LOG_LEVEL" envDefault:"info"`
	LogFormat     string        `env:"MOGBREED_LOG_FORMAT" envDefault:"console"`
	EntropyScheme string        `env:"MOGBREED_ENTROPY_SCHEME" envDefault:"hmac-sha256"`
	ScanTimeout   time.Duration `env:"MOGBREED_SCAN_TIMEOUT" envDefault:"60s"`
	MaxNonceRange uint64        `env:"MOGBREED_MAX_NONCE_RANGE" envDefault:"10000000"`
	ScanWorkers   int           `env:"MOGBREED_SCAN_WORKERS" envDefault:"0"` // 0 = GOMAXPROCS
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values env parsing cannot.
func (c Config) Validate() error {
	var errs []error

	if c.Addr == "" {
		errs = append(errs, errors.New("MOGBREED_ADDR must not be empty"))
	}
	if c.StoreEnabled && c.DBPath == "" {
		errs = append(errs, errors.New("MOGBREED_DB_PATH must be set when the store is enabled"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("MOGBREED_LOG_LEVEL: %w", err))
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("MOGBREED_LOG_FORMAT: want console or json, got %q", c.LogFormat))
	}
	if _, err := engine.ParseScheme(c.EntropyScheme); err != nil {
		errs = append(errs, fmt.Errorf("MOGBREED_ENTROPY_SCHEME: %w", err))
	}
	if c.ScanTimeout <= 0 {
		errs = append(errs, errors.New("MOGBREED_SCAN_TIMEOUT must be positive"))
	}
	if c.MaxNonceRange == 0 {
		errs = append(errs, errors.New("MOGBREED_MAX_NONCE_RANGE must be positive"))
	}
	if c.ScanWorkers < 0 {
		errs = append(errs, errors.New("MOGBREED_SCAN_WORKERS must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Scheme returns the validated default entropy scheme.
func (c Config) Scheme() engine.Scheme {
	s, err := engine.ParseScheme(c.EntropyScheme)
	if err != nil {
		return engine.SchemeHMAC
	}
	return s
}
