// Package aggregate computes display counts for filtered records.
package aggregate

import (
	"sort"

	"github.com/okian/crimemap/internal/domain/model"
)

// Row pairs a record with the count displayed for it.
type Row struct {
	Record       model.Record `json:"-"`
	DisplayCount int          `json:"display_count"`
}

// Result is the aggregated, ordered view of a filtered record set.
type Result struct {
	// Rows are sorted by DisplayCount descending; ties keep input order.
	Rows []Row
	// Total is the sum of counts, or the number of rows when no record carried a count.
	Total int
	// Counted reports whether the records carried counts.
	Counted bool
}

// Empty reports whether there is nothing to show.
func (r Result) Empty() bool { return len(r.Rows) == 0 }

// MaxCount returns the largest display count, or 0 for an empty result.
func (r Result) MaxCount() int {
	if len(r.Rows) == 0 {
		return 0
	}
	// rows are sorted descending
	return r.Rows[0].DisplayCount
}

// Aggregate weighs every record by its count (1 when absent), totals the
// weights and orders the rows by weight, keeping input order on ties.
func Aggregate(records []model.Record) Result {
	res := Result{Rows: make([]Row, 0, len(records))}
	for _, r := range records {
		w := r.Weight()
		res.Rows = append(res.Rows, Row{Record: r, DisplayCount: w})
		res.Total += w
		if r.HasCount {
			res.Counted = true
		}
	}
	sort.SliceStable(res.Rows, func(i, j int) bool {
		return res.Rows[i].DisplayCount > res.Rows[j].DisplayCount
	})
	return res
}
