package scraper

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricecompare/models"
)

func TestBreakers_OpenAfterConsecutiveFailures(t *testing.T) {
	b := NewBreakers(BreakerConfig{Failures: 2, Cooldown: time.Hour})
	calls := 0
	failing := func() ([]models.RawCandidate, error) {
		calls++
		return nil, errors.New("navigation timeout")
	}

	for i := 0; i < 2; i++ {
		_, err := b.Run(context.Background(), models.SourceAmazon, failing)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrSourceSkipped)
	}

	_, err := b.Run(context.Background(), models.SourceAmazon, failing)
	assert.ErrorIs(t, err, ErrSourceSkipped)
	assert.Equal(t, 2, calls)

	// other sources are unaffected
	out, err := b.Run(context.Background(), models.SourceFlipkart, func() ([]models.RawCandidate, error) {
		return []models.RawCandidate{{Title: "ok"}}, nil
	})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestBreakers_CancellationIsNotAFailure(t *testing.T) {
	b := NewBreakers(BreakerConfig{Failures: 2, Cooldown: time.Hour})
	failing := func() ([]models.RawCandidate, error) {
		return nil, errors.New("navigation timeout")
	}

	_, err := b.Run(context.Background(), models.SourceJioMart, failing)
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	_, err = b.Run(ctx, models.SourceJioMart, func() ([]models.RawCandidate, error) {
		cancel()
		return nil, fmt.Errorf("scroll: %w", context.Canceled)
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "closed", b.States()[models.SourceJioMart])

	// the cancelled call did not reset the failure count
	_, err = b.Run(context.Background(), models.SourceJioMart, failing)
	require.Error(t, err)
	assert.Equal(t, "open", b.States()[models.SourceJioMart])
}

func TestBreakers_CancelledTrialDoesNotClose(t *testing.T) {
	b := NewBreakers(BreakerConfig{Failures: 1, Cooldown: 20 * time.Millisecond})

	_, err := b.Run(context.Background(), models.SourceAmazon, func() ([]models.RawCandidate, error) {
		return nil, errors.New("blocked")
	})
	require.Error(t, err)
	require.Equal(t, "open", b.States()[models.SourceAmazon])

	time.Sleep(40 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	_, err = b.Run(ctx, models.SourceAmazon, func() ([]models.RawCandidate, error) {
		cancel()
		return nil, context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "open", b.States()[models.SourceAmazon], "an interrupted trial proves nothing")

	time.Sleep(40 * time.Millisecond)

	out, err := b.Run(context.Background(), models.SourceAmazon, func() ([]models.RawCandidate, error) {
		return []models.RawCandidate{{Title: "ok"}}, nil
	})
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, "closed", b.States()[models.SourceAmazon])
}

func TestBreakers_DoneContextSkipsCall(t *testing.T) {
	b := NewBreakers(BreakerConfig{Failures: 1, Cooldown: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := b.Run(ctx, models.SourceFlipkart, func() ([]models.RawCandidate, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestBreakers_PanicReleasesTrial(t *testing.T) {
	b := NewBreakers(BreakerConfig{Failures: 1, Cooldown: 20 * time.Millisecond})
	_, _ = b.Run(context.Background(), models.SourceVijaySales, func() ([]models.RawCandidate, error) {
		return nil, errors.New("blocked")
	})
	time.Sleep(40 * time.Millisecond)

	assert.Panics(t, func() {
		_, _ = b.Run(context.Background(), models.SourceVijaySales, func() ([]models.RawCandidate, error) {
			panic("selector engine exploded")
		})
	})
	assert.Equal(t, "open", b.States()[models.SourceVijaySales])
}

func TestBreakers_Disabled(t *testing.T) {
	b := NewBreakers(BreakerConfig{})
	for i := 0; i < 5; i++ {
		_, err := b.Run(context.Background(), models.SourceAmazon, func() ([]models.RawCandidate, error) {
			return nil, errors.New("boom")
		})
		assert.NotErrorIs(t, err, ErrSourceSkipped)
	}
	assert.Empty(t, b.States())

	var none *Breakers
	_, err := none.Run(context.Background(), models.SourceAmazon, func() ([]models.RawCandidate, error) { return nil, nil })
	assert.NoError(t, err)
}
