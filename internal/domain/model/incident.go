// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// Fidelity is the granularity tier of a dataset.
type Fidelity string

// Supported fidelity tiers.
const (
	// FidelityHigh is a per-constabulary dataset with individual monthly incidents.
	FidelityHigh Fidelity = "high"
	// FidelityLow is the nationwide dataset with coarser rows.
	FidelityLow Fidelity = "low"
)

// ParseFidelity maps user input onto a Fidelity. Matching is case-insensitive.
func ParseFidelity(s string) (Fidelity, error) {
	switch Fidelity(strings.ToLower(strings.TrimSpace(s))) {
	case FidelityHigh:
		return FidelityHigh, nil
	case FidelityLow:
		return FidelityLow, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFidelity, s)
	}
}

// Record is a single recorded incident row. Empty strings mark a missing
// value in a filterable dimension.
type Record struct {
	Constabulary string  // police force area
	CrimeType    string  // crime category, e.g. "Burglary"
	Month        string  // period label, YYYY-MM
	Latitude     float64 // degrees
	Longitude    float64 // degrees
	Count        int     // incidents represented by the row, valid when HasCount
	HasCount     bool    // false when the source row carried no count
}

// Weight returns the number of incidents the row stands for.
func (r Record) Weight() int {
	if r.HasCount {
		return r.Count
	}
	return 1
}

// Dataset is an ordered, read-only collection of records from one source key.
type Dataset struct {
	Fidelity  Fidelity
	Location  string // where the records were loaded from
	HasCounts bool   // the source carried a count column
	Records   []Record
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Selection is the set of user-chosen dimensions for one pipeline run.
// Constabulary and Month are required for FidelityHigh and ignored for FidelityLow.
type Selection struct {
	Constabulary string   `json:"constabulary,omitempty"`
	CrimeType    string   `json:"crime_type"`
	Month        string   `json:"month,omitempty"`
	Fidelity     Fidelity `json:"fidelity"`
}

// Validate checks that the fields required by the fidelity tier are present.
func (s Selection) Validate() error {
	switch s.Fidelity {
	case FidelityHigh:
		if s.Constabulary == "" {
			return fmt.Errorf("%w: constabulary is required for high fidelity", ErrIncompleteSelection)
		}
		if s.Month == "" {
			return fmt.Errorf("%w: month is required for high fidelity", ErrIncompleteSelection)
		}
	case FidelityLow:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFidelity, s.Fidelity)
	}
	if s.CrimeType == "" {
		return fmt.Errorf("%w: crime_type is required", ErrIncompleteSelection)
	}
	return nil
}

// Normalized returns the selection with fields the tier ignores cleared.
func (s Selection) Normalized() Selection {
	if s.Fidelity == FidelityLow {
		s.Constabulary = ""
		s.Month = ""
	}
	return s
}
