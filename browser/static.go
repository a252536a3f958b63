package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"pricecompare/scraper"
)

// StaticConfig configures the plain HTTP provider
type StaticConfig struct {
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// StaticProvider fetches pages over HTTP and parses them with goquery. No
// scripts run, so it only suits sources that render results server side.
type StaticProvider struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

func NewStaticProvider(cfg StaticConfig) *StaticProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &StaticProvider{
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(limit, burst),
		userAgent: cfg.UserAgent,
	}
}

func (p *StaticProvider) NewSession(ctx context.Context) (scraper.Session, error) {
	return &staticSession{provider: p}, ctx.Err()
}

func (p *StaticProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

type staticSession struct {
	provider *StaticProvider
}

func (s *staticSession) Open(ctx context.Context, url string) (scraper.Document, error) {
	if err := s.provider.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if s.provider.userAgent != "" {
		req.Header.Set("User-Agent", s.provider.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-IN,en;q=0.9")

	resp, err := s.provider.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return &staticDocument{doc: doc}, nil
}

func (s *staticSession) Close() error {
	return nil
}

// ParseDocument wraps already fetched HTML
func ParseDocument(html string) (scraper.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return &staticDocument{doc: doc}, nil
}

type staticDocument struct {
	doc *goquery.Document
}

// ScrollBy is a no-op: there is nothing to lazy load without scripts
func (d *staticDocument) ScrollBy(ctx context.Context, pixels int) error {
	return ctx.Err()
}

func (d *staticDocument) FindAll(ctx context.Context, loc scraper.Locator) ([]scraper.Element, error) {
	var elements []scraper.Element
	d.doc.Find(string(loc)).Each(func(_ int, s *goquery.Selection) {
		elements = append(elements, &staticElement{sel: s})
	})
	return elements, ctx.Err()
}

func (d *staticDocument) WaitFor(_ context.Context, loc scraper.Locator, _ time.Duration) bool {
	return d.doc.Find(string(loc)).Length() > 0
}

func (d *staticDocument) Content(context.Context) (string, error) {
	return d.doc.Find("body").Text(), nil
}

func (d *staticDocument) Title(context.Context) (string, error) {
	return strings.TrimSpace(d.doc.Find("title").First().Text()), nil
}

type staticElement struct {
	sel *goquery.Selection
}

func (e *staticElement) FindOne(_ context.Context, loc scraper.Locator) (scraper.Element, error) {
	found := e.sel.Find(string(loc)).First()
	if found.Length() == 0 {
		return nil, scraper.ErrNotFound
	}
	return &staticElement{sel: found}, nil
}

func (e *staticElement) Text(context.Context) (string, error) {
	return e.sel.Text(), nil
}

func (e *staticElement) Attribute(_ context.Context, name string) (string, bool, error) {
	value, ok := e.sel.Attr(name)
	return value, ok, nil
}
