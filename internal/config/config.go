// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() builds a Config with defaults; Load layers sources on top of it.
// - Keys are flat snake_case names shared by YAML files and CRIMEMAP_* env vars.
package config

import (
	"github.com/okian/crimemap/internal/domain/registry"
	"github.com/okian/crimemap/internal/domain/render"
)

// Source kinds.
const (
	SourceHTTP   = "http"
	SourceFile   = "file"
	SourceSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// SourceKind selects where datasets come from: http, file or sqlite.
	SourceKind string `koanf:"source_kind"`

	// SourceBase is the URL or directory every dataset path is relative to.
	SourceBase string `koanf:"source_base"`

	// IndexPath, HighFidelityDir and LowFidelityPath locate the constabulary
	// list, the per-constabulary files and the nationwide file under SourceBase.
	IndexPath       string `koanf:"index_path"`
	HighFidelityDir string `koanf:"high_fidelity_dir"`
	LowFidelityPath string `koanf:"low_fidelity_path"`

	// FilenameStyle is the per-constabulary file naming convention: plain or tuple.
	FilenameStyle string `koanf:"filename_style"`

	// SQLitePath is the database used by the sqlite source and the import command.
	SQLitePath string `koanf:"sqlite_path"`

	// FetchTimeoutMS bounds a single HTTP dataset fetch.
	FetchTimeoutMS int `koanf:"fetch_timeout_ms"`

	// CacheSize bounds the number of cached datasets.
	CacheSize int `koanf:"cache_size"`

	// SessionLimit bounds the number of tracked explorer sessions.
	SessionLimit int `koanf:"session_limit"`

	// GestureMemory is how many clear gestures each session remembers.
	GestureMemory int `koanf:"gesture_memory"`

	// PrefetchEnabled warms the cache with every dataset on start.
	PrefetchEnabled bool `koanf:"prefetch_enabled"`

	// PrefetchWorkers and PrefetchQueueSize size the prefetch pool.
	PrefetchWorkers   int `koanf:"prefetch_workers"`
	PrefetchQueueSize int `koanf:"prefetch_queue_size"`

	// ClusterZoomStart is the initial zoom of cluster maps.
	ClusterZoomStart int `koanf:"cluster_zoom_start"`

	// Heatmap rendering constants.
	HeatmapRadius   int           `koanf:"heatmap_radius"`
	HeatmapBlur     int           `koanf:"heatmap_blur"`
	HeatmapMaxZoom  int           `koanf:"heatmap_max_zoom"`
	HeatmapGradient []render.Stop `koanf:"heatmap_gradient"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		SourceKind:        SourceHTTP,
		SourceBase:        "https://raw.githubusercontent.com/moza993/Crime_Stats_England/main",
		IndexPath:         "constabularies.csv",
		HighFidelityDir:   "split_data",
		LowFidelityPath:   "nationwide.csv",
		FilenameStyle:     string(registry.StyleTuple),
		SQLitePath:        "./data/crimemap.db",
		FetchTimeoutMS:    60_000,
		CacheSize:         64,
		SessionLimit:      1_000,
		GestureMemory:     256,
		PrefetchEnabled:   false,
		PrefetchWorkers:   4,
		PrefetchQueueSize: 256,
		ClusterZoomStart:  7,
		HeatmapRadius:     15,
		HeatmapBlur:       10,
		HeatmapMaxZoom:    12,
		HeatmapGradient:   render.DefaultGradient(),
	}
}
