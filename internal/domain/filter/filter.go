// Package filter selects the records matching a selection and derives the
// selectable option lists shown to the user.
package filter

import (
	"sort"

	"github.com/okian/crimemap/internal/domain/model"
)

// Apply returns the records of ds matching every field of sel that applies to
// its fidelity tier. Matching is exact: case-sensitive and untrimmed.
// A selection that matches nothing yields an empty, non-nil slice.
func Apply(ds *model.Dataset, sel model.Selection) []model.Record {
	out := make([]model.Record, 0)
	if ds == nil {
		return out
	}
	sel = sel.Normalized()
	for _, r := range ds.Records {
		if matches(r, sel) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r model.Record, sel model.Selection) bool {
	if sel.Constabulary != "" && r.Constabulary != sel.Constabulary {
		return false
	}
	if sel.Month != "" && r.Month != sel.Month {
		return false
	}
	if sel.CrimeType != "" && r.CrimeType != sel.CrimeType {
		return false
	}
	return true
}

// Domain lists the selectable values of each dimension, each sorted ascending.
type Domain struct {
	Constabularies []string `json:"constabularies"`
	CrimeTypes     []string `json:"crime_types"`
	Months         []string `json:"months"`
}

// Options derives the selectable values from records. Missing values are
// left out of the lists; the records themselves stay filterable.
func Options(records []model.Record) Domain {
	return Domain{
		Constabularies: Distinct(records, func(r model.Record) string { return r.Constabulary }),
		CrimeTypes:     Distinct(records, func(r model.Record) string { return r.CrimeType }),
		Months:         Distinct(records, func(r model.Record) string { return r.Month }),
	}
}

// Distinct returns the sorted set of non-empty values produced by field.
func Distinct(records []model.Record, field func(model.Record) string) []string {
	seen := make(map[string]struct{})
	values := make([]string, 0)
	for _, r := range records {
		v := field(r)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// Contains reports whether v is one of the sorted values.
func Contains(values []string, v string) bool {
	i := sort.SearchStrings(values, v)
	return i < len(values) && values[i] == v
}
