// Package service runs the explore pipeline for user sessions: load the
// dataset a selection needs, filter, aggregate and pick a render strategy.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/okian/crimemap/internal/adapters/mq/queue"
	"github.com/okian/crimemap/internal/adapters/mq/worker"
	"github.com/okian/crimemap/internal/domain/aggregate"
	"github.com/okian/crimemap/internal/domain/dedupe"
	"github.com/okian/crimemap/internal/domain/filter"
	"github.com/okian/crimemap/internal/domain/invalidation"
	"github.com/okian/crimemap/internal/domain/model"
	"github.com/okian/crimemap/internal/domain/registry"
	"github.com/okian/crimemap/internal/domain/render"
	"github.com/okian/crimemap/pkg/logger"
	"github.com/okian/crimemap/pkg/metrics"
)

// Pipeline outcomes reported in metrics.
const (
	outcomeRendered    = "rendered"
	outcomeNoData      = "no_data"
	outcomeUnavailable = "unavailable"
	outcomeInvalid     = "invalid"
)

// noDataWarning accompanies the status line when a selection matches nothing.
const noDataWarning = "No data available for the selected filters."

// Request is one explore evaluation.
type Request struct {
	SessionID    string          `json:"session_id,omitempty"`
	Selection    model.Selection `json:"selection"`
	ClearGesture string          `json:"clear_gesture,omitempty"`
}

// View is what one pipeline run hands back to the caller.
type View struct {
	SessionID  string             `json:"session_id"`
	Selection  model.Selection    `json:"selection"`
	Dataset    string             `json:"dataset,omitempty"`
	Status     string             `json:"status"`
	NoData     bool               `json:"no_data"`
	Total      int                `json:"total"`
	Records    int                `json:"records"`
	Render     *render.Spec       `json:"render,omitempty"`
	Options    filter.Domain      `json:"options"`
	CacheState invalidation.State `json:"cache_state"`
	Cleared    bool               `json:"cleared"`
	Warning    string             `json:"warning,omitempty"`
}

// ClearResult reports the outcome of a standalone clear gesture.
type ClearResult struct {
	SessionID  string             `json:"session_id"`
	Cleared    bool               `json:"cleared"`
	Rerun      bool               `json:"rerun"`
	CacheState invalidation.State `json:"cache_state"`
}

// OptionsView lists what can be selected for a dataset.
type OptionsView struct {
	Dataset registry.Key  `json:"dataset"`
	Options filter.Domain `json:"options"`
}

// Service implements the API dependencies for the crime map explorer.
type Service struct {
	mu sync.RWMutex

	registry *registry.Registry
	selector *render.Selector
	sessions *lru.Cache[string, *invalidation.Controller]

	// Configuration
	sessionLimit      int
	gestureMemory     int
	prefetchEnabled   bool
	prefetchWorkers   int
	prefetchQueueSize int

	// Prefetch
	prefetchQueue *queue.InMemoryQueue
	prefetchPool  *worker.Pool

	// State
	started bool

	logger logger.Logger
}

// New constructs a Service on top of reg.
func New(reg *registry.Registry, opts ...Option) (*Service, error) {
	if reg == nil {
		return nil, ErrNoRegistry
	}
	s := &Service{
		registry:          reg,
		selector:          render.NewSelector(),
		sessionLimit:      defaultSessionLimit,
		gestureMemory:     defaultGestureMemory,
		prefetchWorkers:   defaultPrefetchWorkers,
		prefetchQueueSize: defaultPrefetchQueueSize,
		logger:            logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	sessions, err := lru.New[string, *invalidation.Controller](s.sessionLimit)
	if err != nil {
		return nil, fmt.Errorf("create session table: %w", err)
	}
	s.sessions = sessions
	return s, nil
}

// Start starts background prefetching when enabled.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting explorer service...",
		logger.Bool("prefetch", s.prefetchEnabled),
		logger.Int("sessionLimit", s.sessionLimit),
	)

	if s.prefetchEnabled {
		s.prefetchQueue = queue.NewInMemoryQueue(queue.WithCapacity(s.prefetchQueueSize))
		s.prefetchPool = worker.NewPool(s.prefetchWorkers, s.prefetchQueue, s.registry, worker.WithLogger(s.logger))
		s.prefetchPool.Start(ctx)
		go func() {
			n, err := s.Prefetch(ctx)
			if err != nil {
				s.logger.Warn(ctx, "prefetch stopped early", logger.Int("queued", n), logger.Error(err))
				return
			}
			s.logger.Info(ctx, "prefetch queued", logger.Int("jobs", n))
		}()
	}

	s.started = true
	return nil
}

// Stop drains the prefetch pool.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	if s.prefetchPool != nil {
		if err := s.prefetchPool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "prefetch shutdown", logger.Error(err))
		}
	}
	s.started = false
	s.logger.Info(ctx, "explorer service stopped")
}

// Prefetch queues the constabulary list, the nationwide dataset and every
// per-constabulary dataset for warming. It returns the number of queued jobs.
func (s *Service) Prefetch(ctx context.Context) (int, error) {
	s.mu.RLock()
	q := s.prefetchQueue
	s.mu.RUnlock()
	if q == nil {
		return 0, ErrPrefetchDisabled
	}

	opts, err := s.registry.Constabularies(ctx)
	if err != nil {
		return 0, err
	}
	keys := make([]registry.Key, 0, len(opts)+1)
	low, err := s.registry.Resolve(model.FidelityLow, "")
	if err != nil {
		return 0, err
	}
	keys = append(keys, low)
	for _, o := range opts {
		k, err := s.registry.Resolve(model.FidelityHigh, o.Name)
		if err != nil {
			return 0, err
		}
		keys = append(keys, k)
	}

	queued := 0
	for _, k := range keys {
		if !q.Enqueue(ctx, k) {
			return queued, fmt.Errorf("%w: %s", ErrPrefetchFull, k.Slug)
		}
		queued++
	}
	return queued, nil
}

// NewSession registers a fresh session and returns its id.
func (s *Service) NewSession(ctx context.Context) string {
	id, _ := s.session(ctx, "")
	return id
}

// session returns the controller for id, creating a session when id is
// empty, malformed or unknown.
func (s *Service) session(ctx context.Context, id string) (string, *invalidation.Controller) {
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	if c, ok := s.sessions.Get(id); ok {
		return id, c
	}
	sessionID := id
	logCtx := context.WithoutCancel(ctx)
	c := invalidation.New(s.registry,
		invalidation.WithGestureMemory(dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.gestureMemory))),
		invalidation.WithOnClear(func() {
			s.logger.Info(logCtx, "cache clear accepted", logger.String("session", sessionID))
		}),
	)
	if prev, ok, _ := s.sessions.PeekOrAdd(id, c); ok {
		return id, prev
	}
	metrics.UpdateSessions(s.sessions.Len())
	return id, c
}

// Explore runs the pipeline for one selection. A clear gesture, if present
// and not handled before, drops the cached datasets first; this run is then
// the single forced re-entry that settles the controller.
//
// A dataset failure returns a view carrying a warning together with an error
// wrapping registry.ErrDatasetUnavailable.
func (s *Service) Explore(ctx context.Context, req Request) (View, error) {
	start := time.Now()
	sel := req.Selection.Normalized()
	fidelity := string(sel.Fidelity)

	sessionID, ctrl := s.session(ctx, req.SessionID)
	view := View{SessionID: sessionID, Selection: sel}

	if err := sel.Validate(); err != nil {
		metrics.RecordPipelineRun(fidelity, outcomeInvalid, elapsedMs(start))
		view.CacheState = ctrl.State()
		return view, fmt.Errorf("%w: %w", ErrInvalidSelection, err)
	}

	view.Cleared = ctrl.Request(ctx, req.ClearGesture)
	defer func() {
		ctrl.Observe(ctx)
	}()

	ds, key, err := s.registry.LoadSelection(ctx, sel)
	if err != nil {
		metrics.RecordPipelineRun(fidelity, outcomeUnavailable, elapsedMs(start))
		view.Warning = "Could not load data for the selected filters: " + err.Error()
		view.CacheState = invalidation.StateIdle
		return view, err
	}
	view.Dataset = key.Location
	view.Options = filter.Options(ds.Records)

	records := make([]model.Record, 0)
	if inDomain(view.Options, sel) {
		records = filter.Apply(ds, sel)
	} else {
		s.logger.Debug(ctx, "selection outside dataset options",
			logger.String("dataset", key.Location),
			logger.String("crimeType", sel.CrimeType),
			logger.String("month", sel.Month),
		)
	}
	res := aggregate.Aggregate(records)
	metrics.RecordFilteredRecords(fidelity, len(records))

	view.Records = len(records)
	view.Total = res.Total
	view.Status = statusMessage(sel, len(records), res)
	view.CacheState = invalidation.StateIdle
	metrics.UpdateCachedDatasets(s.registry.Cached())

	spec, err := s.selector.Select(sel.Fidelity, res)
	switch {
	case errors.Is(err, render.ErrNoData):
		view.NoData = true
		view.Warning = noDataWarning
		metrics.RecordPipelineRun(fidelity, outcomeNoData, elapsedMs(start))
		return view, nil
	case err != nil:
		metrics.RecordPipelineRun(fidelity, outcomeInvalid, elapsedMs(start))
		return view, err
	}
	view.Render = &spec
	metrics.RecordPipelineRun(fidelity, outcomeRendered, elapsedMs(start))

	s.logger.Debug(ctx, "pipeline run",
		logger.String("session", sessionID),
		logger.String("dataset", key.Location),
		logger.Int("records", len(records)),
		logger.Int("total", res.Total),
		logger.String("mode", string(spec.Mode)),
	)
	return view, nil
}

// ClearCache handles a clear gesture outside of an explore run. When the
// clear runs, the caller must re-run Explore once to settle the session.
func (s *Service) ClearCache(ctx context.Context, sessionID, gestureID string) (ClearResult, error) {
	if gestureID == "" {
		return ClearResult{}, ErrMissingGesture
	}
	id, ctrl := s.session(ctx, sessionID)
	cleared := ctrl.Request(ctx, gestureID)
	state := ctrl.State()
	return ClearResult{
		SessionID:  id,
		Cleared:    cleared,
		Rerun:      state == invalidation.StatePendingClear,
		CacheState: state,
	}, nil
}

// Constabularies returns the selectable constabularies.
func (s *Service) Constabularies(ctx context.Context) ([]registry.ConstabularyOption, error) {
	return s.registry.Constabularies(ctx)
}

// Options returns the selectable crime types and months of the dataset for
// a fidelity tier and constabulary.
func (s *Service) Options(ctx context.Context, fidelity model.Fidelity, constabulary string) (OptionsView, error) {
	key, err := s.registry.Resolve(fidelity, constabulary)
	if err != nil {
		return OptionsView{}, fmt.Errorf("%w: %w", ErrInvalidSelection, err)
	}
	ds, err := s.registry.Load(ctx, key)
	if err != nil {
		return OptionsView{}, err
	}
	return OptionsView{Dataset: key, Options: filter.Options(ds.Records)}, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":        s.started,
		"sessions":       s.sessions.Len(),
		"cachedDatasets": s.registry.Cached(),
		"prefetch":       s.prefetchEnabled,
	}
	if s.prefetchPool != nil {
		processed, failed := s.prefetchPool.Stats()
		stats["prefetchProcessed"] = processed
		stats["prefetchFailed"] = failed
		stats["prefetchQueued"] = s.prefetchQueue.Len(context.Background())
	}
	metrics.UpdateSessions(s.sessions.Len())
	metrics.UpdateCachedDatasets(s.registry.Cached())
	return stats
}

// inDomain reports whether the chosen crime type, and the month for high
// fidelity, are among the dataset's selectable values.
func inDomain(d filter.Domain, sel model.Selection) bool {
	if !filter.Contains(d.CrimeTypes, sel.CrimeType) {
		return false
	}
	return sel.Fidelity != model.FidelityHigh || filter.Contains(d.Months, sel.Month)
}

func statusMessage(sel model.Selection, n int, res aggregate.Result) string {
	if sel.Fidelity == model.FidelityLow {
		return fmt.Sprintf("Showing %d %s crimes across all constabularies.", res.Total, sel.CrimeType)
	}
	return fmt.Sprintf("Showing %d %s crimes in %s for %s.", n, sel.CrimeType, sel.Constabulary, sel.Month)
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
