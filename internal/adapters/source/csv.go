// Package source loads incident datasets and the constabulary list from CSV
// files, either over HTTP or from a local directory.
package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/okian/crimemap/internal/domain/model"
)

// Column headers, matched case-insensitively after trimming.
const (
	colConstabulary = "constabulary"
	colCrimeType    = "crime type"
	colMonth        = "month"
	colLatitude     = "latitude"
	colLongitude    = "longitude"
	colCount        = "count"
)

type columns struct {
	constabulary, crimeType, month, lat, lon, count int
}

func indexHeader(header []string) columns {
	idx := columns{constabulary: -1, crimeType: -1, month: -1, lat: -1, lon: -1, count: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case colConstabulary:
			idx.constabulary = i
		case colCrimeType:
			idx.crimeType = i
		case colMonth:
			idx.month = i
		case colLatitude:
			idx.lat = i
		case colLongitude:
			idx.lon = i
		case colCount:
			idx.count = i
		}
	}
	return idx
}

// DecodeIncidents reads an incident CSV. Latitude, Longitude and Crime type
// columns are required; Constabulary, Month and Count are optional. Rows
// with unparseable coordinates or counts fail the whole dataset.
func DecodeIncidents(r io.Reader, fidelity model.Fidelity) (*model.Dataset, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrMalformed)
		}
		return nil, fmt.Errorf("%w: read header: %w", ErrMalformed, err)
	}
	idx := indexHeader(header)
	switch {
	case idx.lat < 0:
		return nil, fmt.Errorf("%w: missing %q column", ErrMalformed, colLatitude)
	case idx.lon < 0:
		return nil, fmt.Errorf("%w: missing %q column", ErrMalformed, colLongitude)
	case idx.crimeType < 0:
		return nil, fmt.Errorf("%w: missing %q column", ErrMalformed, colCrimeType)
	}

	ds := &model.Dataset{Fidelity: fidelity, HasCounts: idx.count >= 0}
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformed, line, err)
		}
		rec, err := decodeRow(row, idx)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformed, line, err)
		}
		ds.Records = append(ds.Records, rec)
	}
	return ds, nil
}

func decodeRow(row []string, idx columns) (model.Record, error) {
	var rec model.Record
	rec.Constabulary = cell(row, idx.constabulary)
	rec.CrimeType = cell(row, idx.crimeType)
	rec.Month = cell(row, idx.month)

	lat, err := strconv.ParseFloat(strings.TrimSpace(cell(row, idx.lat)), 64)
	if err != nil {
		return rec, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(cell(row, idx.lon)), 64)
	if err != nil {
		return rec, fmt.Errorf("longitude: %w", err)
	}
	rec.Latitude, rec.Longitude = lat, lon

	if raw := strings.TrimSpace(cell(row, idx.count)); raw != "" {
		n, err := parseCount(raw)
		if err != nil {
			return rec, err
		}
		rec.Count, rec.HasCount = n, true
	}
	return rec, nil
}

// parseCount accepts integers and integral floats such as "5.0".
func parseCount(raw string) (int, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		if n < 0 || n > math.MaxInt32 {
			return 0, fmt.Errorf("count %q is not a non-negative integer", raw)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || f < 0 || f > math.MaxInt32 {
		return 0, fmt.Errorf("count %q is not a non-negative integer", raw)
	}
	return int(f), nil
}

// cell returns the raw value, or "" when the column is absent.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// DecodeConstabularies reads the constabulary list. Empty names are kept
// so callers decide how to treat them.
func DecodeConstabularies(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %w", ErrMalformed, err)
	}
	col := indexHeader(header).constabulary
	if col < 0 {
		return nil, fmt.Errorf("%w: missing %q column", ErrMalformed, colConstabulary)
	}
	names := make([]string, 0)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return names, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		names = append(names, cell(row, col))
	}
}
