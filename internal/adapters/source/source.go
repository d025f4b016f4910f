package source

import (
	"context"
	"fmt"
	"io"

	"github.com/okian/crimemap/internal/domain/model"
	"github.com/okian/crimemap/internal/domain/registry"
)

// Opener fetches the raw bytes at a key location.
type Opener interface {
	Name() string
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// CSVSource decodes CSV files produced by an Opener. It implements
// registry.Source.
type CSVSource struct {
	opener Opener
}

var _ registry.Source = (*CSVSource)(nil)

// NewCSVSource creates a source reading CSV through opener.
func NewCSVSource(opener Opener) *CSVSource {
	return &CSVSource{opener: opener}
}

// Name identifies the source by its opener.
func (s *CSVSource) Name() string { return s.opener.Name() }

// LoadDataset fetches and decodes the incident file behind key.
func (s *CSVSource) LoadDataset(ctx context.Context, key registry.Key) (*model.Dataset, error) {
	rc, err := s.opener.Open(ctx, key.Location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	ds, err := DecodeIncidents(rc, key.Fidelity)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key.Location, err)
	}
	ds.Location = key.Location
	return ds, nil
}

// LoadConstabularies fetches and decodes the constabulary list behind key.
func (s *CSVSource) LoadConstabularies(ctx context.Context, key registry.Key) ([]string, error) {
	rc, err := s.opener.Open(ctx, key.Location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	names, err := DecodeConstabularies(rc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key.Location, err)
	}
	return names, nil
}
