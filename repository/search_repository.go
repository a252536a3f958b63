package repository

import (
	"context"
	"database/sql"
	"fmt"

	"pricecompare/cache"
	"pricecompare/models"
)

// SearchRepository persists completed searches and their ranked products
type SearchRepository struct {
	db *sql.DB
}

func NewSearchRepository(db *sql.DB) *SearchRepository {
	return &SearchRepository{db: db}
}

// RecordSearch stores a result with its products in rank order and its
// per-source reports, all in one transaction
func (r *SearchRepository) RecordSearch(ctx context.Context, result *models.SearchResult) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var lowest sql.NullInt64
	if len(result.Products) > 0 {
		lowest = sql.NullInt64{Int64: result.Products[0].PriceAmount, Valid: true}
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO searches (query, normalized_query, total_products, lowest_price, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		result.Query, cache.Key(result.Query), len(result.Products), lowest, result.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert search: %w", err)
	}

	for rank, p := range result.Products {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO search_products (search_id, rank, title, price_text, price_amount, rating, category, source, url, image_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			id, rank+1, p.Title, p.PriceText, p.PriceAmount, p.Rating, string(p.Category), string(p.Source), p.URL, p.ImageURL,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert product: %w", err)
		}
	}

	for _, s := range result.Sources {
		var sourceErr sql.NullString
		if s.Error != "" {
			sourceErr = sql.NullString{String: s.Error, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO search_sources (search_id, source, candidates, error, skipped, duration_ms)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			id, string(s.Source), s.Candidates, sourceErr, s.Skipped, s.DurationMS,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert source report: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit search: %w", err)
	}
	return id, nil
}

// RecentSearches returns the newest searches first
func (r *SearchRepository) RecentSearches(ctx context.Context, limit int) ([]models.SearchHistory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, query, total_products, lowest_price, created_at
		FROM searches
		ORDER BY created_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get searches: %w", err)
	}
	defer rows.Close()

	history := []models.SearchHistory{}
	for rows.Next() {
		var h models.SearchHistory
		var lowest sql.NullInt64
		if err := rows.Scan(&h.ID, &h.Query, &h.TotalProducts, &lowest, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan search: %w", err)
		}
		if lowest.Valid {
			v := lowest.Int64
			h.LowestPrice = &v
		}
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read searches: %w", err)
	}
	return history, nil
}

// SearchProducts returns the ranked products stored for one search. A
// search without products and an unknown search both yield an empty list.
func (r *SearchRepository) SearchProducts(ctx context.Context, searchID int64) ([]models.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT title, price_text, price_amount, rating, category, source, url, image_url
		FROM search_products
		WHERE search_id = $1
		ORDER BY rank`, searchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		var category, source string
		if err := rows.Scan(&p.Title, &p.PriceText, &p.PriceAmount, &p.Rating, &category, &source, &p.URL, &p.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		p.Category = models.CategoryID(category)
		p.Source = models.SourceID(source)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}
	return products, nil
}

// PurgeOlderThan deletes searches created before the cutoff and returns how
// many were removed
func (r *SearchRepository) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM searches
		WHERE created_at < NOW() - make_interval(days => $1)`, days)
	if err != nil {
		return 0, fmt.Errorf("failed to purge searches: %w", err)
	}
	return res.RowsAffected()
}
