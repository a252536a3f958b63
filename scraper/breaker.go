package scraper

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"pricecompare/logger"
	"pricecompare/models"
)

// BreakerConfig controls the per-source circuit breakers. Failures of zero
// disables them.
type BreakerConfig struct {
	// Failures is the number of consecutive failed extractions that opens
	// a source's breaker
	Failures uint32
	// Cooldown is how long an open breaker skips its source
	Cooldown time.Duration
}

// Breakers holds one circuit breaker per source, created on first use
type Breakers struct {
	cfg BreakerConfig

	mu       sync.Mutex
	breakers map[models.SourceID]*gobreaker.TwoStepCircuitBreaker
}

func NewBreakers(cfg BreakerConfig) *Breakers {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Breakers{
		cfg:      cfg,
		breakers: make(map[models.SourceID]*gobreaker.TwoStepCircuitBreaker),
	}
}

func (b *Breakers) get(source models.SourceID) *gobreaker.TwoStepCircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[source]; ok {
		return cb
	}

	failures := b.cfg.Failures
	cb := gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        string(source),
		MaxRequests: 1,
		Timeout:     b.cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Log.Warn().
				Str("source", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Source circuit breaker state changed")
		},
	})
	b.breakers[source] = cb
	return cb
}

// Run executes fn through the source's breaker. An open breaker returns
// ErrSourceSkipped without calling fn.
//
// A call cut short because ctx ended says nothing about the source and is
// not recorded: a closed breaker keeps its failure count, and an
// interrupted half-open trial sends the breaker back to open rather than
// closing it.
func (b *Breakers) Run(ctx context.Context, source models.SourceID, fn func() ([]models.RawCandidate, error)) ([]models.RawCandidate, error) {
	if b == nil || b.cfg.Failures == 0 {
		return fn()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cb := b.get(source)
	done, err := cb.Allow()
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrSourceSkipped
		}
		return nil, err
	}
	trial := cb.State() == gobreaker.StateHalfOpen

	reported := false
	defer func() {
		// fn panicked: release the slot as a failure
		if !reported {
			done(false)
		}
	}()

	out, err := fn()
	reported = true
	switch {
	case err == nil:
		done(true)
	case ctx.Err() != nil && !trial:
	default:
		done(false)
	}
	return out, err
}

// States reports the breaker state of every source seen so far
func (b *Breakers) States() map[models.SourceID]string {
	states := make(map[models.SourceID]string)
	if b == nil {
		return states
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for source, cb := range b.breakers {
		states[source] = cb.State().String()
	}
	return states
}
