package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"pricecompare/cache"
	"pricecompare/logger"
	"pricecompare/metrics"
	"pricecompare/models"
	"pricecompare/scraper"
)

// Comparer runs one query across every source
type Comparer interface {
	Compare(ctx context.Context, query string) (*models.SearchResult, error)
	Sources() []models.SourceID
}

// HistoryStore persists finished searches
type HistoryStore interface {
	RecordSearch(ctx context.Context, result *models.SearchResult) (int64, error)
	RecentSearches(ctx context.Context, limit int) ([]models.SearchHistory, error)
	SearchProducts(ctx context.Context, searchID int64) ([]models.Product, error)
}

// SearchService puts the result cache and search history around the
// aggregator. Concurrent identical queries share one run.
type SearchService struct {
	comparer Comparer
	cache    cache.Cache
	history  HistoryStore
	timeout  time.Duration
	group    singleflight.Group
}

// NewSearchService creates a search service. resultCache and history may be
// nil to disable them.
func NewSearchService(comparer Comparer, resultCache cache.Cache, history HistoryStore, timeout time.Duration) *SearchService {
	if timeout <= 0 {
		timeout = 150 * time.Second
	}
	return &SearchService{
		comparer: comparer,
		cache:    resultCache,
		history:  history,
		timeout:  timeout,
	}
}

// Search returns the ranked products for query, from cache when possible.
// The run itself is bounded by the service timeout rather than ctx, so a
// caller that goes away does not waste a search other callers share; ctx
// only bounds how long this caller waits.
func (s *SearchService) Search(ctx context.Context, query string) (*models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		metrics.RecordSearch(metrics.OutcomeInvalid, 0, 0)
		return nil, scraper.ErrEmptyQuery
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, query); ok {
			metrics.RecordCacheLookup(true)
			metrics.RecordSearch(metrics.OutcomeCached, len(cached.Products), 0)
			cached.Cached = true
			return cached, nil
		}
		metrics.RecordCacheLookup(false)
	}

	start := time.Now()
	ch := s.group.DoChan(cache.Key(query), func() (interface{}, error) {
		return s.run(ctx, query)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("search abandoned: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			metrics.RecordSearch(metrics.OutcomeError, 0, time.Since(start))
			return nil, res.Err
		}
		result := res.Val.(*models.SearchResult)
		metrics.RecordSearch(metrics.OutcomeOK, len(result.Products), time.Since(start))
		if res.Shared {
			logger.Log.Debug().Str("query", query).Msg("Search result shared with concurrent callers")
		}
		return result, nil
	}
}

func (s *SearchService) run(parent context.Context, query string) (*models.SearchResult, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.timeout)
	defer cancel()

	result, err := s.comparer.Compare(ctx, query)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, query, result); err != nil {
			logger.Log.Warn().Err(err).Str("query", query).Msg("Failed to cache search result")
		}
	}
	if s.history != nil {
		if _, err := s.history.RecordSearch(ctx, result); err != nil {
			logger.Log.Warn().Err(err).Str("query", query).Msg("Failed to record search history")
		}
	}
	return result, nil
}

// Sources lists the sources every search covers
func (s *SearchService) Sources() []models.SourceID {
	return s.comparer.Sources()
}

// HistoryEnabled reports whether searches are persisted
func (s *SearchService) HistoryEnabled() bool {
	return s.history != nil
}

// RecentSearches lists persisted searches, newest first. Without a history
// store the list is empty.
func (s *SearchService) RecentSearches(ctx context.Context, limit int) ([]models.SearchHistory, error) {
	if s.history == nil {
		return []models.SearchHistory{}, nil
	}
	return s.history.RecentSearches(ctx, limit)
}

// SearchProducts returns the stored products of one past search
func (s *SearchService) SearchProducts(ctx context.Context, searchID int64) ([]models.Product, error) {
	if s.history == nil {
		return []models.Product{}, nil
	}
	return s.history.SearchProducts(ctx, searchID)
}
