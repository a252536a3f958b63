package scraper

import (
	"errors"
	"fmt"

	"pricecompare/models"
)

var (
	// ErrEmptyQuery is returned before any session is opened
	ErrEmptyQuery = errors.New("search query is required")

	// ErrNotFound reports that a locator matched nothing in its scope
	ErrNotFound = errors.New("element not found")

	// ErrBlocked reports a bot wall or captcha in place of results
	ErrBlocked = errors.New("page blocked by anti-bot protection")

	// ErrSourceSkipped is recorded when a source's circuit breaker is open
	ErrSourceSkipped = errors.New("source temporarily disabled")
)

// ProviderError wraps a session or navigation failure for one source
type ProviderError struct {
	Source models.SourceID
	Op     string
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func providerError(source models.SourceID, op string, err error) error {
	return &ProviderError{Source: source, Op: op, Err: err}
}
