package scheduler

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"pricecompare/logger"
)

// HistoryPurger drops persisted searches past their retention
type HistoryPurger interface {
	PurgeOlderThan(ctx context.Context, days int) (int64, error)
}

// Watchlist re-runs configured queries on a cron schedule so their cached
// results and history stay fresh
type Watchlist struct {
	cron     *cron.Cron
	schedule string
	queries  []string
	search   SearchFunc

	purger        HistoryPurger
	retentionDays int

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWatchlist validates the schedule (standard five-field cron syntax or a
// descriptor such as @hourly). An empty schedule is allowed only without
// queries, for a watchlist that just purges history.
func NewWatchlist(schedule string, queries []string, search SearchFunc) (*Watchlist, error) {
	cleaned := make([]string, 0, len(queries))
	for _, q := range queries {
		if q = strings.TrimSpace(q); q != "" {
			cleaned = append(cleaned, q)
		}
	}

	switch {
	case schedule != "":
		if _, err := cron.ParseStandard(schedule); err != nil {
			return nil, fmt.Errorf("invalid watch schedule %q: %w", schedule, err)
		}
	case len(cleaned) > 0:
		return nil, fmt.Errorf("watch queries need a schedule")
	}

	return &Watchlist{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{}),
			cron.SkipIfStillRunning(cronLogger{}),
		)),
		schedule: schedule,
		queries:  cleaned,
		search:   search,
	}, nil
}

// WithHistoryPurge also deletes history older than days, once a day
func (w *Watchlist) WithHistoryPurge(purger HistoryPurger, days int) *Watchlist {
	w.purger = purger
	w.retentionDays = days
	return w
}

// Queries returns the watched queries
func (w *Watchlist) Queries() []string {
	return append([]string(nil), w.queries...)
}

// Start schedules the jobs
func (w *Watchlist) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	if w.schedule != "" && len(w.queries) > 0 {
		if _, err := w.cron.AddFunc(w.schedule, func() { w.RunOnce(w.ctx) }); err != nil {
			return fmt.Errorf("failed to schedule watch queries: %w", err)
		}
	}
	if w.purger != nil && w.retentionDays > 0 {
		if _, err := w.cron.AddFunc("@daily", func() { w.purge(w.ctx) }); err != nil {
			return fmt.Errorf("failed to schedule history purge: %w", err)
		}
	}

	w.cron.Start()
	logger.Log.Info().
		Str("schedule", w.schedule).
		Int("queries", len(w.queries)).
		Int("jobs", w.Jobs()).
		Msg("Watchlist scheduled")
	return nil
}

// Jobs is the number of scheduled jobs
func (w *Watchlist) Jobs() int {
	return len(w.cron.Entries())
}

// Stop stops scheduling and waits for a running job to return
func (w *Watchlist) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	<-w.cron.Stop().Done()
}

// RunOnce searches every watched query in order and returns how many
// succeeded. Queries run one at a time to keep browser load flat.
func (w *Watchlist) RunOnce(ctx context.Context) int {
	logger.Log.Info().Int("queries", len(w.queries)).Msg("Running watch queries")

	succeeded := 0
	for _, q := range w.queries {
		if ctx.Err() != nil {
			break
		}
		result, err := w.search(ctx, q)
		if err != nil {
			logger.Log.Warn().Err(err).Str("query", q).Msg("Watch query failed")
			continue
		}
		succeeded++
		logger.Log.Info().Str("query", q).Int("products", len(result.Products)).Msg("Watch query refreshed")
	}
	return succeeded
}

func (w *Watchlist) purge(ctx context.Context) {
	removed, err := w.purger.PurgeOlderThan(ctx, w.retentionDays)
	if err != nil {
		logger.Log.Error().Err(err).Msg("History purge failed")
		return
	}
	logger.Log.Info().Int64("removed", removed).Int("retention_days", w.retentionDays).Msg("History purged")
}

// cronLogger routes cron's own messages to zerolog
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
