package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/crimemap/internal/config"
	"github.com/okian/crimemap/internal/domain/render"
)

// isolate points the loader at an empty .env so the developer's files and
// environment do not leak into assertions.
func isolate(t *testing.T) string {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.env")
	convey.So(os.WriteFile(empty, nil, 0o600), convey.ShouldBeNil)
	t.Setenv("CRIMEMAP_ENV_FILE", empty)
	t.Setenv("CRIMEMAP_CONFIG", "")
	return dir
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		dir := isolate(t)

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.SourceKind, convey.ShouldEqual, config.SourceHTTP)
				convey.So(cfg.HeatmapGradient, convey.ShouldResemble, render.DefaultGradient())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			t.Setenv("CRIMEMAP_ADDR", ":8080")
			t.Setenv("CRIMEMAP_CACHE_SIZE", "8")
			t.Setenv("CRIMEMAP_FILENAME_STYLE", "plain")
			t.Setenv("CRIMEMAP_PREFETCH_ENABLED", "true")
			t.Setenv("CRIMEMAP_HEATMAP_RADIUS", "25")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.CacheSize, convey.ShouldEqual, 8)
				convey.So(cfg.FilenameStyle, convey.ShouldEqual, "plain")
				convey.So(cfg.PrefetchEnabled, convey.ShouldBeTrue)
				convey.So(cfg.HeatmapRadius, convey.ShouldEqual, 25)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			path := filepath.Join(dir, "crimemap.yaml")
			yaml := `addr: ":7070"
source_kind: file
source_base: /srv/crime
heatmap_gradient:
  - threshold: 0.5
    color: yellow
  - threshold: 1.0
    color: purple
`
			convey.So(os.WriteFile(path, []byte(yaml), 0o600), convey.ShouldBeNil)
			t.Setenv("CRIMEMAP_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load values from the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.SourceKind, convey.ShouldEqual, config.SourceFile)
				convey.So(cfg.SourceBase, convey.ShouldEqual, "/srv/crime")
			})

			convey.Convey("And the configured gradient replaces the default", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.HeatmapGradient, convey.ShouldResemble, []render.Stop{
					{Threshold: 0.5, Color: "yellow"},
					{Threshold: 1.0, Color: "purple"},
				})
			})

			convey.Convey("And env vars still win over the file", func() {
				t.Setenv("CRIMEMAP_ADDR", ":6060")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
			})
		})

		convey.Convey("When a .env file sets values", func() {
			envFile := filepath.Join(dir, "local.env")
			convey.So(os.WriteFile(envFile, []byte("CRIMEMAP_SESSION_LIMIT=42\n"), 0o600), convey.ShouldBeNil)
			t.Setenv("CRIMEMAP_ENV_FILE", envFile)
			// godotenv sets process variables; make sure the test restores them
			t.Setenv("CRIMEMAP_SESSION_LIMIT", "")
			convey.So(os.Unsetenv("CRIMEMAP_SESSION_LIMIT"), convey.ShouldBeNil)

			cfg, err := config.Load(ctx)

			convey.Convey("Then they are applied", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.SessionLimit, convey.ShouldEqual, 42)
			})
		})

		convey.Convey("When the explicit .env file is missing", func() {
			t.Setenv("CRIMEMAP_ENV_FILE", filepath.Join(dir, "missing.env"))

			_, err := config.Load(ctx)

			convey.Convey("Then loading fails", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the config file is missing", func() {
			t.Setenv("CRIMEMAP_CONFIG", filepath.Join(dir, "missing.yaml"))

			_, err := config.Load(ctx)

			convey.Convey("Then loading fails", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the loaded config is invalid", func() {
			t.Setenv("CRIMEMAP_SOURCE_KIND", "ftp")

			_, err := config.Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
