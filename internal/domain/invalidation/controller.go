// Package invalidation coordinates the "clear cached data, then re-run once"
// gesture so that a single gesture never clears twice.
package invalidation

import (
	"context"
	"sync"

	"github.com/okian/crimemap/internal/domain/dedupe"
)

// State is the controller state.
type State string

// Controller states.
const (
	StateIdle         State = "idle"
	StatePendingClear State = "pending_clear"
)

// Clearer drops every cached dataset.
type Clearer interface {
	Clear(ctx context.Context) error
}

// ClearerFunc adapts a function to Clearer.
type ClearerFunc func(ctx context.Context) error

// Clear calls f(ctx).
func (f ClearerFunc) Clear(ctx context.Context) error { return f(ctx) }

// Controller is the two-state machine guarding one session's clear gestures.
//
//	Idle --Request(new gesture)--> PendingClear   (clear runs once)
//	PendingClear --Observe-->      Idle
type Controller struct {
	mu       sync.Mutex
	state    State
	clearer  Clearer
	gestures dedupe.Deduper
	onClear  func()
}

// New creates an idle controller that calls clearer on accepted gestures.
func New(clearer Clearer, opts ...Option) *Controller {
	c := &Controller{
		state:   StateIdle,
		clearer: clearer,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.gestures == nil {
		c.gestures = dedupe.NewInMemoryDeduper()
	}
	return c
}

// Request handles a clear gesture. It returns true when the clear action ran,
// which happens only from Idle and only for a gesture not handled before.
// An empty gesture id is never accepted. When the clear action fails the
// gesture is forgotten, so the same gesture may be retried.
func (c *Controller) Request(ctx context.Context, gestureID string) bool {
	if gestureID == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return false
	}
	if c.gestures.SeenAndRecord(ctx, gestureID) {
		return false
	}
	if err := c.clearer.Clear(ctx); err != nil {
		c.gestures.Unrecord(ctx, gestureID)
		return false
	}
	c.state = StatePendingClear
	if c.onClear != nil {
		c.onClear()
	}
	return true
}

// Observe records that the forced re-entry into the pipeline happened.
// It reports whether a pending clear was settled.
func (c *Controller) Observe(_ context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePendingClear {
		return false
	}
	c.state = StateIdle
	return true
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
