package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dshills/iati3w/internal/source"
)

// Environment variable names.
const (
	EnvEndpoint  = "IATI3W_ENDPOINT"
	EnvCacheDir  = "IATI3W_CACHE_DIR"
	EnvTimeout   = "IATI3W_TIMEOUT"
	EnvCodelists = "IATI3W_CODELISTS"
)

// DefaultTimeout bounds a single d-portal page request.
const DefaultTimeout = 2 * time.Minute

// Config captures deployment settings that do not vary per run.
type Config struct {
	Endpoint  string
	CacheDir  string // empty disables the response cache
	Timeout   time.Duration
	Codelists string // optional YAML override file
}

// FromEnv builds a Config from environment variables.
func FromEnv() (Config, error) {
	cfg := Config{
		Endpoint:  os.Getenv(EnvEndpoint),
		CacheDir:  os.Getenv(EnvCacheDir),
		Timeout:   DefaultTimeout,
		Codelists: os.Getenv(EnvCodelists),
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = source.DefaultEndpoint
	}
	if raw := os.Getenv(EnvTimeout); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		if d <= 0 {
			return Config{}, fmt.Errorf("%s: must be positive, got %s", EnvTimeout, raw)
		}
		cfg.Timeout = d
	}
	return cfg, nil
}
