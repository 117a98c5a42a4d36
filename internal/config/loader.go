package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if QUILL_CONFIG is set
//  3. env (prefix QUILL_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("QUILL_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: QUILL_ADDR, QUILL_DB_URL, QUILL_VISITOR_SALT, ...
	// Keys keep their underscores to match the koanf tags on the struct.
	envProvider := env.Provider("QUILL_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "quill_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DefaultLimit < 1:
		return fmt.Errorf("%w: default_limit must be positive", ErrInvalidConfig)
	case c.DefaultWindowS < 1:
		return fmt.Errorf("%w: default_window_s must be positive", ErrInvalidConfig)
	case c.MaxTopResources < 1:
		return fmt.Errorf("%w: max_top_resources must be positive", ErrInvalidConfig)
	}
	if !c.DevMode {
		if c.DBURL == "" {
			return fmt.Errorf("%w: db_url is required outside dev mode", ErrInvalidConfig)
		}
		if c.VisitorSalt == "" {
			return fmt.Errorf("%w: visitor_salt is required outside dev mode", ErrInvalidConfig)
		}
	}
	return nil
}
