package model

import "errors"

// Sentinel kinds for selection errors.
var (
	ErrIncompleteSelection = errors.New("incomplete selection")
	ErrUnknownFidelity     = errors.New("unknown fidelity")
)
