package cache

import (
	"context"
	"sync"
	"time"

	"pricecompare/models"
)

type entry struct {
	result    models.SearchResult
	expiresAt time.Time
}

// MemoryCache keeps results in process. Expired entries are dropped on
// read and by Sweep.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// NewMemoryCache creates a cache holding at most maxSize entries; zero means
// unbounded
func NewMemoryCache(ttl time.Duration, maxSize int) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, query string) (*models.SearchResult, bool) {
	key := Key(query)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}

	result := e.result
	result.Products = append([]models.Product(nil), e.result.Products...)
	result.Sources = append([]models.SourceReport(nil), e.result.Sources...)
	return &result, true
}

func (c *MemoryCache) Set(_ context.Context, query string, result *models.SearchResult) error {
	if result == nil {
		return nil
	}
	stored := *result
	stored.Products = append([]models.Product(nil), result.Products...)
	stored.Sources = append([]models.SourceReport(nil), result.Sources...)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.sweepLocked()
		if len(c.entries) >= c.maxSize {
			c.evictOldestLocked()
		}
	}
	c.entries[Key(query)] = entry{result: stored, expiresAt: c.now().Add(c.ttl)}
	return nil
}

// Sweep drops expired entries and returns how many were removed
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked()
}

// Len returns the number of stored entries, expired or not
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) Close() error {
	return nil
}

func (c *MemoryCache) sweepLocked() int {
	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *MemoryCache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, e := range c.entries {
		if oldestKey == "" || e.expiresAt.Before(oldest) {
			oldestKey, oldest = key, e.expiresAt
		}
	}
	delete(c.entries, oldestKey)
}
