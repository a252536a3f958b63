package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"pricecompare/logger"
)

// Options tunes the connection pool
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to Postgres and verifies the connection
func Open(ctx context.Context, dbURL string, opts Options) (*sql.DB, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("database url is required")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Log.Info().Msg("Connected to database")
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS searches (
		id BIGSERIAL PRIMARY KEY,
		query TEXT NOT NULL,
		normalized_query TEXT NOT NULL,
		total_products INTEGER NOT NULL DEFAULT 0,
		lowest_price BIGINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS search_products (
		id BIGSERIAL PRIMARY KEY,
		search_id BIGINT NOT NULL REFERENCES searches(id) ON DELETE CASCADE,
		rank INTEGER NOT NULL,
		title TEXT NOT NULL,
		price_text TEXT NOT NULL,
		price_amount BIGINT NOT NULL CHECK (price_amount > 0),
		rating TEXT NOT NULL DEFAULT 'N/A',
		category TEXT NOT NULL,
		source TEXT NOT NULL,
		url TEXT NOT NULL,
		image_url TEXT NOT NULL DEFAULT 'N/A'
	)`,
	`CREATE TABLE IF NOT EXISTS search_sources (
		search_id BIGINT NOT NULL REFERENCES searches(id) ON DELETE CASCADE,
		source TEXT NOT NULL,
		candidates INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		skipped BOOLEAN NOT NULL DEFAULT FALSE,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (search_id, source)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_searches_created ON searches (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_searches_normalized ON searches (normalized_query, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_search_products_search ON search_products (search_id, rank)`,
}

// CreateTables creates the history tables if they don't exist
func CreateTables(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}
