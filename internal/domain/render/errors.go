package render

import "errors"

// Sentinel kinds for render errors.
var (
	// ErrNoData signals an empty result: no map is drawn.
	ErrNoData          = errors.New("no data for selection")
	ErrInvalidGradient = errors.New("invalid heatmap gradient")
)
