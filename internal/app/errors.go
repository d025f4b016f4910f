package service

import "errors"

var (
	// ErrNoRegistry is returned by New without a dataset registry.
	ErrNoRegistry = errors.New("dataset registry is required")
	// ErrInvalidSelection wraps selection validation failures.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrMissingGesture is returned when a clear request has no gesture id.
	ErrMissingGesture = errors.New("clear gesture id is required")
	// ErrPrefetchDisabled is returned by Prefetch when prefetching is off or not started.
	ErrPrefetchDisabled = errors.New("prefetch is disabled")
	// ErrPrefetchFull is returned when the prefetch queue rejects a key.
	ErrPrefetchFull = errors.New("prefetch queue full")
)
