package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"pricecompare/logger"
	"pricecompare/models"
)

// Extractor turns one source's search page into raw candidates
type Extractor interface {
	Source() models.SourceID
	Extract(ctx context.Context, query string, session Session) ([]models.RawCandidate, error)
}

// SiteExtractor is the configuration-driven extractor used for every
// bundled source
type SiteExtractor struct {
	cfg      SourceConfig
	detector *BotDetector

	titleRead, priceRead, ratingRead, urlRead, imageRead Reader
	titleOK, priceOK, ratingOK, urlOK                    func(string) bool
	pricePattern                                         *regexp.Regexp
}

// NewSiteExtractor builds an extractor for cfg. detector may be nil, in which
// case an empty page is always reported as zero candidates.
func NewSiteExtractor(cfg SourceConfig, detector *BotDetector) (*SiteExtractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &SiteExtractor{
		cfg:        cfg,
		detector:   detector,
		titleRead:  readerFor(cfg.Title),
		priceRead:  readerFor(cfg.Price),
		ratingRead: readerFor(cfg.Rating),
		urlRead:    readerFor(cfg.URL),
		imageRead:  readerFor(cfg.Image),
		priceOK:    PricePredicate(cfg.Price.CurrencySymbols, cfg.Price.MinDigits),
	}

	minTitle := cfg.Title.MinLength
	e.titleOK = func(s string) bool { return utf8.RuneCountInString(s) >= minTitle }

	if cfg.Rating.RequireDigit {
		e.ratingOK = func(s string) bool { return strings.IndexFunc(s, unicode.IsDigit) >= 0 }
	}
	if hints := cfg.URL.PathHints; len(hints) > 0 {
		e.urlOK = func(s string) bool { return containsAny(s, hints) }
	}
	if cfg.Price.TextPattern != "" {
		pattern, err := regexp.Compile(cfg.Price.TextPattern)
		if err != nil {
			return nil, fmt.Errorf("source %s: invalid price text_pattern: %w", cfg.ID, err)
		}
		e.pricePattern = pattern
	}
	return e, nil
}

// NewExtractors builds one extractor per source, preserving order
func NewExtractors(sources []SourceConfig, detector *BotDetector) ([]Extractor, error) {
	extractors := make([]Extractor, 0, len(sources))
	for _, src := range sources {
		e, err := NewSiteExtractor(src, detector)
		if err != nil {
			return nil, err
		}
		extractors = append(extractors, e)
	}
	return extractors, nil
}

func readerFor(f FieldConfig) Reader {
	switch f.Read {
	case ReadAttributes:
		return AttributesOnly(f.Attributes...)
	case ReadAttributesFirst:
		return AttributesThenText(f.Attributes...)
	default:
		return TextThenAttributes(f.Attributes...)
	}
}

func (e *SiteExtractor) Source() models.SourceID {
	return e.cfg.ID
}

// Extract loads the source's search page for query and returns the
// relevant, priced candidates in page order. Per-container failures only
// skip that container.
func (e *SiteExtractor) Extract(ctx context.Context, query string, session Session) ([]models.RawCandidate, error) {
	src := e.cfg.ID
	searchURL := e.cfg.SearchURLFor(query)

	doc, err := session.Open(ctx, searchURL)
	if err != nil {
		return nil, providerError(src, "open", err)
	}

	if e.cfg.ReadySignal != "" {
		timeout := e.cfg.ReadyTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		if !doc.WaitFor(ctx, e.cfg.ReadySignal, timeout) {
			logger.Log.Debug().Str("source", string(src)).Msg("Ready signal not seen, continuing")
		}
	}

	for i := 0; i < e.cfg.ScrollSteps; i++ {
		if err := doc.ScrollBy(ctx, e.cfg.ScrollPixels); err != nil {
			return nil, providerError(src, "scroll", err)
		}
		if err := pause(ctx, e.cfg.ScrollPause); err != nil {
			return nil, err
		}
	}

	containers, matched := FindContainers(ctx, doc, e.cfg.Containers, e.cfg.MinContainers)
	if len(containers) == 0 {
		if err := e.checkBlocked(ctx, doc); err != nil {
			return nil, err
		}
		logger.Log.Info().Str("source", string(src)).Msg("No product containers found")
		return nil, nil
	}
	if max := e.cfg.MaxContainers; max > 0 && len(containers) > max {
		containers = containers[:max]
	}

	logger.Log.Debug().
		Str("source", string(src)).
		Str("locator", string(matched)).
		Int("containers", len(containers)).
		Msg("Located product containers")

	var candidates []models.RawCandidate
	for i, container := range containers {
		if err := ctx.Err(); err != nil {
			return candidates, err
		}
		candidate, ok, err := e.extractOne(ctx, query, searchURL, container)
		if err != nil {
			logger.Log.Debug().Err(err).Str("source", string(src)).Int("container", i).Msg("Skipping container")
			continue
		}
		if ok {
			candidates = append(candidates, candidate)
		}
	}

	logger.Log.Info().Str("source", string(src)).Int("candidates", len(candidates)).Msg("Extraction finished")
	return candidates, nil
}

func (e *SiteExtractor) checkBlocked(ctx context.Context, doc Document) error {
	if e.detector == nil {
		return nil
	}
	content, err := doc.Content(ctx)
	if err != nil {
		return nil
	}
	title, _ := doc.Title(ctx)

	verdict := e.detector.Inspect(content, title)
	if !verdict.Blocked {
		return nil
	}
	logger.Log.Warn().
		Str("source", string(e.cfg.ID)).
		Str("kind", verdict.Kind).
		Float64("score", verdict.Score).
		Msg("Search page blocked")
	return providerError(e.cfg.ID, "detect", fmt.Errorf("%w: %s", ErrBlocked, verdict.Reason()))
}

// extractOne returns ok=false when the container is not a usable candidate:
// no acceptable title, an irrelevant title or no price.
func (e *SiteExtractor) extractOne(ctx context.Context, query, searchURL string, container Element) (models.RawCandidate, bool, error) {
	title, err := FirstMatching(ctx, container, e.cfg.Title.Locators, e.titleRead, e.titleOK)
	if err != nil {
		return models.RawCandidate{}, false, ignoreNotFound(err)
	}
	if !IsRelevant(title, query) {
		return models.RawCandidate{}, false, nil
	}

	price, err := FirstMatching(ctx, container, e.cfg.Price.Locators, e.priceRead, e.priceOK)
	if errors.Is(err, ErrNotFound) && e.pricePattern != nil {
		if text, textErr := container.Text(ctx); textErr == nil {
			if found, ok := FindPriceText(text, e.pricePattern); ok {
				price, err = found, nil
			}
		}
	}
	if err != nil {
		return models.RawCandidate{}, false, ignoreNotFound(err)
	}

	candidate := models.RawCandidate{
		Title:      title,
		PriceText:  price,
		RatingText: models.NotAvailable,
		URL:        searchURL,
		ImageURL:   models.NotAvailable,
		Source:     e.cfg.ID,
	}

	if rating, err := FirstMatching(ctx, container, e.cfg.Rating.Locators, e.ratingRead, e.ratingOK); err == nil {
		candidate.RatingText = rating
	} else if !errors.Is(err, ErrNotFound) {
		return models.RawCandidate{}, false, err
	}

	if href, err := FirstMatching(ctx, container, e.cfg.URL.Locators, e.urlRead, e.urlOK); err == nil {
		candidate.URL = absoluteURL(e.cfg.BaseURL, href)
	} else if !errors.Is(err, ErrNotFound) {
		return models.RawCandidate{}, false, err
	}

	if src, err := FirstMatching(ctx, container, e.cfg.Image.Locators, e.imageRead, nil); err == nil {
		candidate.ImageURL = absoluteURL(e.cfg.BaseURL, src)
	} else if !errors.Is(err, ErrNotFound) {
		return models.RawCandidate{}, false, err
	}

	return candidate, true, nil
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// absoluteURL resolves href against base. Absolute and unparsable values
// are returned unchanged.
func absoluteURL(base, href string) string {
	if base == "" || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
