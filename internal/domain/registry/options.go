package registry

import "github.com/okian/crimemap/pkg/logger"

// Default key templates, relative to the base location.
const (
	defaultIndexPath = "constabularies.csv"
	defaultHighDir   = "split_data"
	defaultLowPath   = "nationwide.csv"
	defaultCacheSize = 64
)

// KeyOption applies a configuration option to the KeyBuilder.
type KeyOption func(*KeyBuilder)

// WithIndexPath sets the path of the constabulary list.
func WithIndexPath(path string) KeyOption {
	return func(b *KeyBuilder) {
		if path != "" {
			b.indexPath = path
		}
	}
}

// WithHighFidelityDir sets the directory holding per-constabulary files.
func WithHighFidelityDir(dir string) KeyOption {
	return func(b *KeyBuilder) {
		b.highDir = dir
	}
}

// WithLowFidelityPath sets the path of the nationwide file.
func WithLowFidelityPath(path string) KeyOption {
	return func(b *KeyBuilder) {
		if path != "" {
			b.lowPath = path
		}
	}
}

// WithFilenameStyle sets the per-constabulary file naming convention.
func WithFilenameStyle(style FilenameStyle) KeyOption {
	return func(b *KeyBuilder) {
		if style != "" {
			b.style = style
		}
	}
}

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithCacheSize bounds the number of cached datasets.
func WithCacheSize(size int) Option {
	return func(r *Registry) {
		if size > 0 {
			r.cacheSize = size
		}
	}
}

// WithLogger sets a custom logger for the registry.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}
