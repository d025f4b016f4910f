package config

import "errors"

// Sentinel kinds returned by Load and Validate.
var (
	// ErrInvalidConfig marks a loaded config that cannot drive the explorer.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig marks a source (.env, YAML file, environment) that failed to read.
	ErrLoadConfig = errors.New("load config failed")
)
