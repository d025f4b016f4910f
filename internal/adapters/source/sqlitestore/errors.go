package sqlitestore

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound = errors.New("dataset not imported")
)
