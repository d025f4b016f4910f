package invalidation

import "github.com/okian/crimemap/internal/domain/dedupe"

// Option applies a configuration option to the Controller.
type Option func(*Controller)

// WithGestureMemory sets the deduper remembering handled gestures.
func WithGestureMemory(d dedupe.Deduper) Option {
	return func(c *Controller) {
		if d != nil {
			c.gestures = d
		}
	}
}

// WithOnClear registers a hook run after every accepted clear.
func WithOnClear(fn func()) Option {
	return func(c *Controller) {
		c.onClear = fn
	}
}
