// Package storage persists discovered listing URLs in Postgres. The table
// carries a uniqueness constraint on url, so saves are idempotent and a
// duplicate insert is a non-error.
package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"serpharvest/pkg/logger"
)

// URLStore is the storage contract consumed by the crawl engine
type URLStore interface {
	// Init creates the backing table if it does not exist
	Init(ctx context.Context) error
	// LoadSeen returns the URLs already saved for one work unit
	LoadSeen(ctx context.Context, category, subcategory, brand string) (map[string]struct{}, error)
	// SaveURL inserts one URL; it reports true only for a new insert
	SaveURL(ctx context.Context, category, subcategory, brand, url string) (bool, error)
	// Close releases the connection pool
	Close()
}

// Postgres implements URLStore on a pgx connection pool
type Postgres struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

// Open connects to Postgres and returns a URL store
func Open(ctx context.Context, dsn string, maxConns int, log logger.Logger) (*Postgres, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Postgres{pool: pool, logger: log}, nil
}

// Init creates the url_collection table if it does not exist
func (p *Postgres) Init(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS url_collection (
			id BIGSERIAL PRIMARY KEY,
			category VARCHAR(255) NOT NULL,
			subcategory VARCHAR(255) NOT NULL,
			brand VARCHAR(255) NOT NULL,
			url TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to initialize url_collection: %w", err)
	}
	return nil
}

// LoadSeen returns the set of URLs already saved for this work unit
func (p *Postgres) LoadSeen(ctx context.Context, category, subcategory, brand string) (map[string]struct{}, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT url FROM url_collection
		WHERE category = $1 AND subcategory = $2 AND brand = $3`,
		category, subcategory, brand)
	if err != nil {
		return nil, fmt.Errorf("failed to load saved urls: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan url row: %w", err)
		}
		seen[url] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read saved urls: %w", err)
	}

	return seen, nil
}

// SaveURL inserts one URL, skipping duplicates via the uniqueness constraint.
// Returns true only when the row was newly inserted.
func (p *Postgres) SaveURL(ctx context.Context, category, subcategory, brand, url string) (bool, error) {
	tag, err := p.pool.Exec(ctx, `
		INSERT INTO url_collection (category, subcategory, brand, url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (url) DO NOTHING`,
		category, subcategory, brand, url)
	if err != nil {
		return false, fmt.Errorf("failed to save url: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Close releases the connection pool
func (p *Postgres) Close() {
	p.pool.Close()
}
