package registry

import "errors"

// Sentinel kinds for registry errors.
var (
	// ErrDatasetUnavailable wraps every failure to fetch or parse a dataset.
	ErrDatasetUnavailable = errors.New("dataset unavailable")
	ErrFilenameStyle      = errors.New("unknown filename style")
	ErrNoSource           = errors.New("no dataset source configured")
)
