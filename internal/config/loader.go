package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/crimemap/internal/domain/registry"
	"github.com/okian/crimemap/internal/domain/render"
)

// Environment variables read before koanf runs.
const (
	envPrefix  = "CRIMEMAP_"
	envConfig  = "CRIMEMAP_CONFIG"
	envDotFile = "CRIMEMAP_ENV_FILE"
)

// Load builds a Config by layering defaults, .env, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if CRIMEMAP_CONFIG is set
//  3. env (prefix CRIMEMAP_), including values from a .env file
//     (CRIMEMAP_ENV_FILE, default ".env") that never override the real environment
func Load(_ context.Context) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if path := os.Getenv(envConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// CRIMEMAP_CACHE_SIZE -> cache_size; underscores are kept to match the
	// flat koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := New()
	if k.Exists("heatmap_gradient") {
		// a configured gradient replaces the default instead of merging into it
		cfg.HeatmapGradient = nil
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv() error {
	path := os.Getenv(envDotFile)
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err == nil || (!explicit && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
}

// Validate checks settings that would otherwise fail deep inside the service.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.CacheSize < 1:
		return fmt.Errorf("%w: cache_size must be positive", ErrInvalidConfig)
	case c.SessionLimit < 1:
		return fmt.Errorf("%w: session_limit must be positive", ErrInvalidConfig)
	}
	switch c.SourceKind {
	case SourceHTTP, SourceFile:
		if c.SourceBase == "" {
			return fmt.Errorf("%w: source_base is required for %s sources", ErrInvalidConfig, c.SourceKind)
		}
	case SourceSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite_path is required for sqlite sources", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown source_kind %q", ErrInvalidConfig, c.SourceKind)
	}
	if _, err := registry.FilenameStyle(c.FilenameStyle).Filename("x"); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := render.ValidateGradient(c.HeatmapGradient); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
