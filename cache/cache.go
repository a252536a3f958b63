// Package cache stores ranked search results keyed by the normalized query.
package cache

import (
	"context"
	"strings"

	"pricecompare/models"
)

// Cache is a result store with a fixed time-to-live
type Cache interface {
	// Get reports false on a miss. Backend failures are treated as misses.
	Get(ctx context.Context, query string) (*models.SearchResult, bool)
	Set(ctx context.Context, query string, result *models.SearchResult) error
	Close() error
}

// Key folds case and whitespace so equivalent queries share an entry
func Key(query string) string {
	return "search:" + strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
