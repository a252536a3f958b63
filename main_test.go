package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricecompare/config"
	"pricecompare/models"
)

type noopPurger struct{}

func (noopPurger) PurgeOlderThan(context.Context, int) (int64, error) { return 0, nil }

func noSearch(context.Context, string) (*models.SearchResult, error) {
	return &models.SearchResult{}, nil
}

func loadConfig(t *testing.T, vars map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(vars)
	require.NoError(t, err)
	return cfg
}

func TestNewWatchlist_PurgesHistoryWithoutWatchSchedule(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"DATABASE_URL": "postgres://localhost/pricecompare"})

	w, err := newWatchlist(cfg, noSearch, noopPurger{})
	require.NoError(t, err)
	require.NotNil(t, w)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()
	assert.Equal(t, 1, w.Jobs())
}

func TestNewWatchlist_WatchAndPurge(t *testing.T) {
	cfg := loadConfig(t, map[string]string{
		"DATABASE_URL":   "postgres://localhost/pricecompare",
		"WATCH_SCHEDULE": "0 */6 * * *",
		"WATCH_QUERIES":  "iphone 15,tata salt",
	})

	w, err := newWatchlist(cfg, noSearch, noopPurger{})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()
	assert.Equal(t, 2, w.Jobs())
}

func TestNewWatchlist_NothingToSchedule(t *testing.T) {
	w, err := newWatchlist(loadConfig(t, map[string]string{}), noSearch, nil)
	require.NoError(t, err)
	assert.Nil(t, w, "no history and no watch schedule")

	cfg := loadConfig(t, map[string]string{
		"DATABASE_URL":            "postgres://localhost/pricecompare",
		"DATABASE_RETENTION_DAYS": "0",
	})
	w, err = newWatchlist(cfg, noSearch, noopPurger{})
	require.NoError(t, err)
	assert.Nil(t, w, "retention disabled")
}
