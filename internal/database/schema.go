package database

import (
	"context"
	"fmt"
)

const createProductsSQL = `
		CREATE TABLE IF NOT EXISTS products (
			id         BIGSERIAL PRIMARY KEY,
			name       TEXT NOT NULL,
			price      TEXT NOT NULL,
			old_price  TEXT,
			link       TEXT NOT NULL,
			scraped_at DATE NOT NULL DEFAULT CURRENT_DATE
		)`

// Migrate creates the products table when it does not exist yet.
// Existing data is never touched.
func Migrate(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, createProductsSQL); err != nil {
		return fmt.Errorf("failed to create products table: %w", err)
	}
	return nil
}
