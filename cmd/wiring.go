package main

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/crimemap/internal/adapters/source"
	"github.com/okian/crimemap/internal/adapters/source/sqlitestore"
	app "github.com/okian/crimemap/internal/app"
	"github.com/okian/crimemap/internal/config"
	"github.com/okian/crimemap/internal/domain/registry"
	"github.com/okian/crimemap/internal/domain/render"
	"github.com/okian/crimemap/pkg/logger"
)

func noopClose() error { return nil }

// newKeyBuilder builds dataset keys from the configured locations.
func newKeyBuilder(cfg *config.Config) (*registry.KeyBuilder, error) {
	return registry.NewKeyBuilder(cfg.SourceBase,
		registry.WithIndexPath(cfg.IndexPath),
		registry.WithHighFidelityDir(cfg.HighFidelityDir),
		registry.WithLowFidelityPath(cfg.LowFidelityPath),
		registry.WithFilenameStyle(registry.FilenameStyle(cfg.FilenameStyle)),
	)
}

// newCSVSource builds the CSV source for http and file source kinds.
func newCSVSource(cfg *config.Config) (*source.CSVSource, error) {
	switch cfg.SourceKind {
	case config.SourceHTTP:
		timeout := time.Duration(cfg.FetchTimeoutMS) * time.Millisecond
		return source.NewCSVSource(source.NewHTTPOpener(nil, timeout)), nil
	case config.SourceFile:
		return source.NewCSVSource(source.NewFileOpener()), nil
	default:
		return nil, fmt.Errorf("%w: %s is not a CSV source", config.ErrInvalidConfig, cfg.SourceKind)
	}
}

// newSource builds the configured dataset source. The returned func
// releases it.
func newSource(ctx context.Context, cfg *config.Config) (registry.Source, func() error, error) {
	if cfg.SourceKind == config.SourceSQLite {
		store, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	src, err := newCSVSource(cfg)
	if err != nil {
		return nil, nil, err
	}
	return src, noopClose, nil
}

// newService wires the registry and the explorer service from cfg.
func newService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, func() error, error) {
	src, closeSource, err := newSource(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	keys, err := newKeyBuilder(cfg)
	if err != nil {
		_ = closeSource()
		return nil, nil, err
	}
	reg, err := registry.New(src, keys,
		registry.WithCacheSize(cfg.CacheSize),
		registry.WithLogger(log.Named("registry")),
	)
	if err != nil {
		_ = closeSource()
		return nil, nil, err
	}

	selector := render.NewSelector(
		render.WithGradient(cfg.HeatmapGradient),
		render.WithRadius(cfg.HeatmapRadius),
		render.WithBlur(cfg.HeatmapBlur),
		render.WithMaxZoom(cfg.HeatmapMaxZoom),
		render.WithZoomStart(cfg.ClusterZoomStart),
	)
	opts := []app.Option{
		app.WithLogger(log.Named("explorer")),
		app.WithSelector(selector),
		app.WithSessionLimit(cfg.SessionLimit),
		app.WithGestureMemory(cfg.GestureMemory),
	}
	if cfg.PrefetchEnabled {
		opts = append(opts, app.WithPrefetch(cfg.PrefetchWorkers, cfg.PrefetchQueueSize))
	}
	svc, err := app.New(reg, opts...)
	if err != nil {
		_ = closeSource()
		return nil, nil, err
	}
	return svc, closeSource, nil
}
