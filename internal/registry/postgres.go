// Package registry is the Postgres-backed brand registry: curated
// brand-to-ASIN mappings that bypass page validation, and brand-site
// URL records learned from successful searches.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"snaplist/internal/pricing"
)

// Schema is the DDL the registry expects.
const Schema = `
CREATE TABLE IF NOT EXISTS brand_asins (
    brand       TEXT NOT NULL,
    title_hint  TEXT NOT NULL DEFAULT '',
    asin        TEXT NOT NULL,
    PRIMARY KEY (brand, title_hint)
);

CREATE TABLE IF NOT EXISTS brand_urls (
    signature   TEXT PRIMARY KEY,
    product_url TEXT NOT NULL DEFAULT '',
    requires_js BOOLEAN NOT NULL DEFAULT FALSE,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// PostgresRegistry implements pricing.BrandRegistry.
type PostgresRegistry struct {
	db *sql.DB
}

// Open connects to Postgres with the given DSN.
func Open(dsn string) (*PostgresRegistry, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("registry open: %w", err)
	}
	return &PostgresRegistry{db: db}, nil
}

// Migrate applies the registry schema.
func (r *PostgresRegistry) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, Schema)
	return err
}

// GetASIN returns the curated ASIN for a brand, preferring rows whose
// title hint appears in the product title. Empty means no mapping.
func (r *PostgresRegistry) GetASIN(ctx context.Context, brand, title string) (string, error) {
	const q = `
SELECT asin FROM brand_asins
WHERE lower(brand) = lower($1)
  AND (title_hint = '' OR position(lower(title_hint) IN lower($2)) > 0)
ORDER BY length(title_hint) DESC
LIMIT 1`
	var asin string
	err := r.db.QueryRowContext(ctx, q, brand, title).Scan(&asin)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("registry asin lookup: %w", err)
	}
	return asin, nil
}

// GetURLs returns the stored brand-site record for a signature.
func (r *PostgresRegistry) GetURLs(ctx context.Context, signature string) (pricing.BrandURLs, error) {
	const q = `SELECT product_url, requires_js FROM brand_urls WHERE signature = $1`
	var rec pricing.BrandURLs
	err := r.db.QueryRowContext(ctx, q, signature).Scan(&rec.ProductURL, &rec.RequiresJS)
	if errors.Is(err, sql.ErrNoRows) {
		return pricing.BrandURLs{}, nil
	}
	if err != nil {
		return pricing.BrandURLs{}, fmt.Errorf("registry url lookup: %w", err)
	}
	return rec, nil
}

// SetURLs upserts a brand-site record.
func (r *PostgresRegistry) SetURLs(ctx context.Context, signature string, patch pricing.BrandURLs) error {
	const q = `
INSERT INTO brand_urls (signature, product_url, requires_js, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (signature) DO UPDATE
SET product_url = EXCLUDED.product_url,
    requires_js = EXCLUDED.requires_js,
    updated_at  = now()`
	if _, err := r.db.ExecContext(ctx, q, signature, patch.ProductURL, patch.RequiresJS); err != nil {
		return fmt.Errorf("registry url upsert: %w", err)
	}
	return nil
}

// Close releases the pool.
func (r *PostgresRegistry) Close() error { return r.db.Close() }
