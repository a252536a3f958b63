package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pricecompare/logger"
	"pricecompare/metrics"
	"pricecompare/models"
)

const defaultTeardownTimeout = 10 * time.Second

// Aggregator runs every extractor for a query inside one provider session
// and merges the results into a single price-ranked list
type Aggregator struct {
	sessions        SessionFactory
	extractors      []Extractor
	breakers        *Breakers
	teardownTimeout time.Duration
}

// NewAggregator keeps the extractor order: it is the source priority and
// the tie-break order of the ranking. breakers may be nil.
func NewAggregator(sessions SessionFactory, extractors []Extractor, breakers *Breakers, teardownTimeout time.Duration) *Aggregator {
	if teardownTimeout <= 0 {
		teardownTimeout = defaultTeardownTimeout
	}
	return &Aggregator{
		sessions:        sessions,
		extractors:      extractors,
		breakers:        breakers,
		teardownTimeout: teardownTimeout,
	}
}

// Sources lists the configured sources in priority order
func (a *Aggregator) Sources() []models.SourceID {
	ids := make([]models.SourceID, len(a.extractors))
	for i, e := range a.extractors {
		ids[i] = e.Source()
	}
	return ids
}

// BreakerStates exposes the per-source breaker states for health output
func (a *Aggregator) BreakerStates() map[models.SourceID]string {
	return a.breakers.States()
}

// Compare searches every source for query. A failing source contributes no
// products and is described in the result's source reports. The session is
// closed on every path, including cancellation.
func (a *Aggregator) Compare(ctx context.Context, query string) (*models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	session, err := a.sessions.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	defer a.teardown(session)

	log := logger.Log.With().Str("query", query).Logger()
	log.Info().Int("sources", len(a.extractors)).Msg("Starting search")

	var candidates []models.RawCandidate
	reports := make([]models.SourceReport, 0, len(a.extractors))

	for _, extractor := range a.extractors {
		if err := ctx.Err(); err != nil {
			log.Warn().Err(err).Msg("Search cancelled")
			return nil, fmt.Errorf("search cancelled: %w", err)
		}

		found, report := a.runExtractor(ctx, extractor, query, session)
		candidates = append(candidates, found...)
		reports = append(reports, report)
	}

	products := BuildProducts(candidates)
	RankByPrice(products)

	log.Info().
		Int("candidates", len(candidates)).
		Int("products", len(products)).
		Msg("Search finished")

	return &models.SearchResult{
		Query:     query,
		Products:  products,
		Sources:   reports,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// runExtractor never fails: errors and panics become an empty result and a
// report entry
func (a *Aggregator) runExtractor(ctx context.Context, extractor Extractor, query string, session Session) (found []models.RawCandidate, report models.SourceReport) {
	source := extractor.Source()
	report.Source = source
	start := time.Now()
	outcome := metrics.OutcomeOK

	defer func() {
		if r := recover(); r != nil {
			found = nil
			report.Error = fmt.Sprintf("extractor panic: %v", r)
			outcome = metrics.OutcomeError
			logger.Log.Error().Str("source", string(source)).Interface("panic", r).Msg("Extractor panicked")
		}
		elapsed := time.Since(start)
		report.Candidates = len(found)
		report.DurationMS = elapsed.Milliseconds()
		metrics.RecordSource(string(source), outcome, elapsed)
	}()

	found, err := a.breakers.Run(ctx, source, func() ([]models.RawCandidate, error) {
		return extractor.Extract(ctx, query, session)
	})

	switch {
	case errors.Is(err, ErrSourceSkipped):
		found = nil
		report.Skipped = true
		report.Error = err.Error()
		outcome = metrics.OutcomeSkipped
		logger.Log.Warn().Str("source", string(source)).Msg("Source skipped, circuit open")
	case err != nil:
		found = nil
		report.Error = err.Error()
		outcome = metrics.OutcomeError
		logger.Log.Error().Err(err).Str("source", string(source)).Msg("Extraction failed")
	case len(found) == 0:
		outcome = metrics.OutcomeEmpty
	}
	return found, report
}

// teardown closes the session once, waiting at most teardownTimeout. A
// close that outlasts the wait is abandoned and finishes in the background.
func (a *Aggregator) teardown(session Session) {
	done := make(chan error, 1)
	go func() {
		done <- session.Close()
	}()

	timer := time.NewTimer(a.teardownTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			logger.Log.Warn().Err(err).Msg("Session close failed")
		}
	case <-timer.C:
		logger.Log.Warn().Dur("timeout", a.teardownTimeout).Msg("Session close abandoned")
	}
}
