package sqlitestore

import (
	"context"
	"fmt"

	"github.com/okian/crimemap/internal/domain/model"
	"github.com/okian/crimemap/internal/domain/registry"
	"github.com/okian/crimemap/pkg/logger"
)

// ImportSummary reports what an import copied.
type ImportSummary struct {
	Constabularies int      `json:"constabularies"`
	Datasets       int      `json:"datasets"`
	Records        int      `json:"records"`
	Failed         []string `json:"failed,omitempty"`
}

// Import copies the constabulary list, the nationwide dataset and every
// per-constabulary dataset from src into the store. A failing constabulary
// is recorded in the summary and skipped; a failing index aborts.
func (s *Store) Import(ctx context.Context, src registry.Source, keys *registry.KeyBuilder, log logger.Logger) (ImportSummary, error) {
	var sum ImportSummary
	if log == nil {
		log = logger.Discard()
	}

	names, err := src.LoadConstabularies(ctx, keys.Index())
	if err != nil {
		return sum, fmt.Errorf("load constabularies: %w", err)
	}
	if err := s.SaveConstabularies(ctx, names); err != nil {
		return sum, err
	}
	sum.Constabularies = len(names)

	copyOne := func(key registry.Key) {
		ds, err := src.LoadDataset(ctx, key)
		if err == nil {
			err = s.SaveDataset(ctx, key, ds)
		}
		if err != nil {
			sum.Failed = append(sum.Failed, key.Slug)
			log.Warn(ctx, "import failed", logger.String("slug", key.Slug), logger.Error(err))
			return
		}
		sum.Datasets++
		sum.Records += ds.Len()
		log.Info(ctx, "imported dataset", logger.String("slug", key.Slug), logger.Int("records", ds.Len()))
	}

	low, err := keys.Resolve(model.FidelityLow, "")
	if err != nil {
		return sum, err
	}
	copyOne(low)

	for _, name := range names {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		if name == "" {
			continue
		}
		key, err := keys.Resolve(model.FidelityHigh, name)
		if err != nil {
			return sum, err
		}
		copyOne(key)
	}
	return sum, nil
}
