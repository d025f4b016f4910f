package registry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/okian/crimemap/internal/domain/filter"
	"github.com/okian/crimemap/internal/domain/model"
	"github.com/okian/crimemap/pkg/logger"
	"github.com/okian/crimemap/pkg/metrics"
)

// Source produces datasets for keys. Implementations fetch and decode; they
// never cache.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string
	// LoadDataset loads the incident dataset behind key.
	LoadDataset(ctx context.Context, key Key) (*model.Dataset, error)
	// LoadConstabularies loads the raw constabulary names behind key.
	LoadConstabularies(ctx context.Context, key Key) ([]string, error)
}

// ConstabularyOption is one selectable constabulary. Slug is the fragment
// used when building its dataset key.
type ConstabularyOption struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Registry resolves selections to keys and caches loaded datasets. Cached
// datasets are shared read-only until Clear.
type Registry struct {
	source    Source
	keys      *KeyBuilder
	cacheSize int
	logger    logger.Logger

	cache *lru.Cache[string, *model.Dataset]
	group singleflight.Group

	mu         sync.Mutex
	generation uint64
	index      []ConstabularyOption
}

// New creates a Registry reading from source.
func New(source Source, keys *KeyBuilder, opts ...Option) (*Registry, error) {
	if source == nil || keys == nil {
		return nil, ErrNoSource
	}
	r := &Registry{
		source:    source,
		keys:      keys,
		cacheSize: defaultCacheSize,
		logger:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	cache, err := lru.New[string, *model.Dataset](r.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create dataset cache: %w", err)
	}
	r.cache = cache
	return r, nil
}

// Keys returns the key builder.
func (r *Registry) Keys() *KeyBuilder { return r.keys }

// Resolve returns the dataset key for a fidelity tier.
func (r *Registry) Resolve(fidelity model.Fidelity, constabulary string) (Key, error) {
	return r.keys.Resolve(fidelity, constabulary)
}

// LoadSelection resolves and loads the dataset a selection needs.
func (r *Registry) LoadSelection(ctx context.Context, sel model.Selection) (*model.Dataset, Key, error) {
	key, err := r.keys.Resolve(sel.Fidelity, sel.Constabulary)
	if err != nil {
		return nil, Key{}, err
	}
	ds, err := r.Load(ctx, key)
	return ds, key, err
}

// Load returns the dataset behind key, fetching it on a cache miss.
// Concurrent misses for one key share a single fetch. Failures are wrapped
// in ErrDatasetUnavailable and are not cached.
func (r *Registry) Load(ctx context.Context, key Key) (*model.Dataset, error) {
	id := key.String()
	if ds, ok := r.cache.Get(id); ok {
		metrics.RecordCacheHit("dataset")
		return ds, nil
	}
	metrics.RecordCacheMiss("dataset")

	r.mu.Lock()
	gen := r.generation
	r.mu.Unlock()

	v, err, _ := r.group.Do(flightKey(id, gen), func() (interface{}, error) {
		start := time.Now()
		ds, err := r.source.LoadDataset(ctx, key)
		elapsed := float64(time.Since(start).Milliseconds())
		if err != nil {
			metrics.RecordDatasetLoad(r.source.Name(), "error", elapsed)
			r.logger.Warn(ctx, "dataset load failed",
				logger.String("key", id),
				logger.String("source", r.source.Name()),
				logger.Error(err),
			)
			return nil, err
		}
		metrics.RecordDatasetLoad(r.source.Name(), "ok", elapsed)
		r.mu.Lock()
		if gen == r.generation {
			r.cache.Add(id, ds)
		}
		r.mu.Unlock()
		r.logger.Debug(ctx, "dataset loaded",
			logger.String("key", id),
			logger.Int("records", ds.Len()),
			logger.Float64("ms", elapsed),
		)
		return ds, nil
	})
	if err != nil {
		return nil, unavailable(key, err)
	}
	return v.(*model.Dataset), nil
}

// Constabularies returns the selectable constabularies, sorted by name.
func (r *Registry) Constabularies(ctx context.Context) ([]ConstabularyOption, error) {
	r.mu.Lock()
	if r.index != nil {
		idx := r.index
		r.mu.Unlock()
		metrics.RecordCacheHit("index")
		return idx, nil
	}
	gen := r.generation
	r.mu.Unlock()
	metrics.RecordCacheMiss("index")

	key := r.keys.Index()
	v, err, _ := r.group.Do(flightKey(key.String(), gen), func() (interface{}, error) {
		names, err := r.source.LoadConstabularies(ctx, key)
		if err != nil {
			return nil, err
		}
		records := make([]model.Record, len(names))
		for i, n := range names {
			records[i].Constabulary = n
		}
		distinct := filter.Distinct(records, func(rec model.Record) string { return rec.Constabulary })
		opts := make([]ConstabularyOption, len(distinct))
		for i, n := range distinct {
			opts[i] = ConstabularyOption{Name: n, Slug: Normalize(n)}
		}
		r.mu.Lock()
		if gen == r.generation {
			r.index = opts
		}
		r.mu.Unlock()
		return opts, nil
	})
	if err != nil {
		r.logger.Warn(ctx, "constabulary index load failed", logger.Error(err))
		return nil, unavailable(key, err)
	}
	return v.([]ConstabularyOption), nil
}

// Clear drops every cached dataset and the constabulary list. Loads in
// flight when Clear runs are returned to their callers but not cached, and
// loads started afterwards never join them. A canceled ctx clears nothing.
func (r *Registry) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.generation++
	n := r.cache.Len()
	r.cache.Purge()
	r.index = nil
	r.mu.Unlock()

	metrics.RecordCacheClear()
	r.logger.Info(ctx, "dataset cache cleared", logger.Int("datasets", n))
	return nil
}

// Cached returns the number of cached datasets.
func (r *Registry) Cached() int {
	return r.cache.Len()
}

// flightKey scopes a shared fetch to one cache generation.
func flightKey(id string, gen uint64) string {
	return id + "#" + strconv.FormatUint(gen, 10)
}

func unavailable(key Key, err error) error {
	if errors.Is(err, ErrDatasetUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrDatasetUnavailable, key.Location, err)
}
