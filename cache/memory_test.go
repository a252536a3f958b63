package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricecompare/models"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(ttl time.Duration, size int) (*MemoryCache, *clock) {
	clk := &clock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(ttl, size)
	c.now = clk.now
	return c, clk
}

func sampleResult(query string) *models.SearchResult {
	return &models.SearchResult{
		Query: query,
		Products: []models.Product{
			{Title: "Apple iPhone 15", PriceText: "₹65,999", PriceAmount: 65999, Source: models.SourceFlipkart},
		},
		Sources: []models.SourceReport{{Source: models.SourceFlipkart, Candidates: 1}},
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "search:iphone 15", Key("  iPhone   15 "))
	assert.Equal(t, Key("IPHONE 15"), Key("iphone 15"))
}

func TestMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c, clk := newTestCache(time.Minute, 0)

	_, ok := c.Get(ctx, "iphone 15")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "iphone 15", sampleResult("iphone 15")))

	got, ok := c.Get(ctx, "IPHONE  15")
	require.True(t, ok)
	assert.Equal(t, int64(65999), got.Products[0].PriceAmount)

	clk.t = clk.t.Add(time.Minute)
	_, ok = c.Get(ctx, "iphone 15")
	assert.False(t, ok, "entry expires at ttl")
	assert.Zero(t, c.Len())
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(time.Minute, 0)
	require.NoError(t, c.Set(ctx, "iphone", sampleResult("iphone")))

	first, _ := c.Get(ctx, "iphone")
	first.Products[0].Title = "mutated"
	first.Cached = true

	second, _ := c.Get(ctx, "iphone")
	assert.Equal(t, "Apple iPhone 15", second.Products[0].Title)
	assert.False(t, second.Cached)
}

func TestMemoryCache_MaxSize(t *testing.T) {
	ctx := context.Background()
	c, clk := newTestCache(time.Minute, 2)

	require.NoError(t, c.Set(ctx, "a", sampleResult("a")))
	clk.t = clk.t.Add(time.Second)
	require.NoError(t, c.Set(ctx, "b", sampleResult("b")))
	clk.t = clk.t.Add(time.Second)
	require.NoError(t, c.Set(ctx, "c", sampleResult("c")))

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(ctx, "a")
	assert.False(t, ok, "oldest entry evicted")
	_, ok = c.Get(ctx, "c")
	assert.True(t, ok)
}

func TestMemoryCache_Sweep(t *testing.T) {
	ctx := context.Background()
	c, clk := newTestCache(time.Minute, 0)
	require.NoError(t, c.Set(ctx, "a", sampleResult("a")))
	clk.t = clk.t.Add(30 * time.Second)
	require.NoError(t, c.Set(ctx, "b", sampleResult("b")))
	clk.t = clk.t.Add(45 * time.Second)

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
}

func TestNewRedisCache_InvalidURL(t *testing.T) {
	_, err := NewRedisCache("not a url", time.Minute)
	assert.Error(t, err)
}
