package source

import "errors"

// Sentinel kinds for source errors.
var (
	ErrMalformed = errors.New("malformed dataset")
	ErrNotFound  = errors.New("dataset not found")
	ErrFetch     = errors.New("dataset fetch failed")
)
