package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/search-price-tracker/internal/models"
)

// ErrPartialBatch marks a persist run that stopped before the end of its batch.
// Rows inserted before the failure stay in the store.
var ErrPartialBatch = errors.New("batch only partially persisted")

// ProductStore appends one observation per call.
type ProductStore interface {
	InsertProduct(ctx context.Context, obs models.Observation) error
}

// Persister writes a crawl batch one row at a time. Each insert commits on
// its own; the first failure stops the batch and nothing is rolled back.
type Persister struct {
	store  ProductStore
	logger *slog.Logger
	now    func() time.Time
}

func NewPersister(store ProductStore, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slog.Default()
	}
	return &Persister{
		store:  store,
		logger: logger.With("component", "persister"),
		now:    time.Now,
	}
}

// Persist returns the number of rows written. On failure the error wraps
// both ErrPartialBatch and the store error.
func (p *Persister) Persist(ctx context.Context, batch models.Batch) (int, error) {
	observedAt := p.now()
	inserted := 0

	for i, product := range batch {
		if err := ctx.Err(); err != nil {
			return inserted, fmt.Errorf("%w: stopped at %d/%d: %w", ErrPartialBatch, i, len(batch), err)
		}

		if err := p.store.InsertProduct(ctx, product.Observe(observedAt)); err != nil {
			p.logger.Error("failed to insert product, stopping batch",
				"index", i,
				"name", product.Name,
				"inserted", inserted,
				"remaining", len(batch)-i,
				"error", err)
			return inserted, fmt.Errorf("%w: stopped at %d/%d: %w", ErrPartialBatch, i, len(batch), err)
		}
		inserted++
	}

	p.logger.Info("batch persisted", "inserted", inserted, "date", observedAt.Format(time.DateOnly))
	return inserted, nil
}
