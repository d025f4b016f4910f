package service

import (
	"github.com/okian/crimemap/internal/domain/render"
	"github.com/okian/crimemap/pkg/logger"
)

// Default service configuration.
const (
	defaultSessionLimit      = 1000
	defaultGestureMemory     = 256
	defaultPrefetchWorkers   = 4
	defaultPrefetchQueueSize = 256
)

// Option configures the Service.
type Option func(*Service)

// WithSelector sets the render strategy selector.
func WithSelector(sel *render.Selector) Option {
	return func(s *Service) {
		if sel != nil {
			s.selector = sel
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSessionLimit bounds the number of tracked sessions. The least
// recently used session is forgotten first.
func WithSessionLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sessionLimit = n
		}
	}
}

// WithGestureMemory sets how many clear gestures each session remembers.
func WithGestureMemory(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.gestureMemory = n
		}
	}
}

// WithPrefetch enables warming the dataset cache on Start.
func WithPrefetch(workers, queueSize int) Option {
	return func(s *Service) {
		s.prefetchEnabled = true
		if workers > 0 {
			s.prefetchWorkers = workers
		}
		if queueSize > 0 {
			s.prefetchQueueSize = queueSize
		}
	}
}
