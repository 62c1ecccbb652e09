package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/maltedev/search-price-tracker/internal/models"
)

const insertProductSQL = `
		INSERT INTO products (name, price, old_price, link, scraped_at)
		VALUES ($1, $2, $3, $4, $5)`

// Execer is the subset of *DB and pgx.Tx the repository needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ProductRepository appends product observations. There is no
// deduplication against existing rows.
type ProductRepository struct {
	db Execer
}

func NewProductRepository(db Execer) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) InsertProduct(ctx context.Context, obs models.Observation) error {
	scrapedAt := pgtype.Date{Time: obs.ScrapedAt, Valid: !obs.ScrapedAt.IsZero()}

	_, err := r.db.Exec(ctx, insertProductSQL,
		obs.Name, obs.Price, obs.OldPrice, obs.Link, scrapedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}

	return nil
}
