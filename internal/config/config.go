// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Store settings.
	CCDBPath  string // Path to the constants store SQLite snapshot.
	RCDBPath  string // Path to the run-conditions SQLite snapshot.
	MirrorURL string // Optional Postgres URL for a live run-conditions mirror.

	// Query defaults.
	Variation    string        // Variation used when a request names none.
	FetchTimeout time.Duration // Per-fetch deadline applied by the facade.

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		CCDBPath:     envStr("CONDDB_CCDB_SQLITE", ""),
		RCDBPath:     envStr("CONDDB_RCDB_SQLITE", ""),
		MirrorURL:    envStr("CONDDB_RCDB_MIRROR_URL", ""),
		Variation:    envStr("CONDDB_VARIATION", "default"),
		FetchTimeout: envDuration("CONDDB_FETCH_TIMEOUT", 30*time.Second),
		OTELEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure: envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:  envStr("OTEL_SERVICE_NAME", "conddb"),
		LogLevel:     envStr("CONDDB_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.Variation == "" {
		return fmt.Errorf("config: CONDDB_VARIATION must not be empty")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("config: CONDDB_FETCH_TIMEOUT must be positive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
