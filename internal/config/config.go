// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load() layers file and env.
// - External errors are wrapped via this package's sentinel errors.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBURL is the Postgres connection string for the durable stores.
	// Ignored in dev mode.
	DBURL string `koanf:"db_url"`

	// DevMode runs fully in-memory: no Postgres, one seeded origin token.
	DevMode bool `koanf:"dev_mode"`

	// VisitorSalt keys the one-way visitor anonymizer. It is loaded once at
	// startup and never persisted alongside events. Rotating it remaps every
	// visitor to a new pseudonym.
	VisitorSalt string `koanf:"visitor_salt"`

	// DefaultLimit and DefaultWindowS apply to tokens whose row carries no
	// explicit rate configuration.
	DefaultLimit   int `koanf:"default_limit"`
	DefaultWindowS int `koanf:"default_window_s"`

	// MaxTopResources caps GET /stats?limit.
	MaxTopResources int `koanf:"max_top_resources"`

	// IngestTimeoutMS bounds the store sub-calls of one ingestion call.
	IngestTimeoutMS int `koanf:"ingest_timeout_ms"`

	// LimiterIdleTTLS and LimiterSweepIntervalS control eviction of idle
	// per-token rate windows.
	LimiterIdleTTLS       int `koanf:"limiter_idle_ttl_s"`
	LimiterSweepIntervalS int `koanf:"limiter_sweep_interval_s"`

	// DevTokenID and DevTokenSecret seed one enabled token in dev mode.
	DevTokenID     string `koanf:"dev_token_id"`
	DevTokenSecret string `koanf:"dev_token_secret"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":9080",
		DevMode:               false,
		VisitorSalt:           "",
		DefaultLimit:          600,
		DefaultWindowS:        60,
		MaxTopResources:       100,
		IngestTimeoutMS:       2000,
		LimiterIdleTTLS:       900,
		LimiterSweepIntervalS: 120,
		DevTokenID:            "dev",
		DevTokenSecret:        "dev-secret",
	}
}
