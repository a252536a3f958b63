package scraper_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricecompare/browser"
	"pricecompare/models"
	"pricecompare/scraper"
)

type htmlSession struct {
	html    string
	openErr error
	opened  []string
}

func (s *htmlSession) Open(_ context.Context, url string) (scraper.Document, error) {
	s.opened = append(s.opened, url)
	if s.openErr != nil {
		return nil, s.openErr
	}
	return browser.ParseDocument(s.html)
}

func (s *htmlSession) Close() error { return nil }

func sourceConfig(t *testing.T, id models.SourceID) scraper.SourceConfig {
	t.Helper()
	sources, err := scraper.DefaultSources()
	require.NoError(t, err)
	for _, src := range sources {
		if src.ID == id {
			src.ScrollPause = 0
			return src
		}
	}
	t.Fatalf("source %s not configured", id)
	return scraper.SourceConfig{}
}

func newExtractor(t *testing.T, id models.SourceID) *scraper.SiteExtractor {
	t.Helper()
	e, err := scraper.NewSiteExtractor(sourceConfig(t, id), scraper.NewBotDetector())
	require.NoError(t, err)
	return e
}

const flipkartPage = `<html><head><title>Iphone 15 - Buy Products Online</title></head><body>
<div data-id="A1">
  <a class="wjcEIp" href="/apple-iphone-15/p/itm123">Apple iPhone 15 (Black, 128 GB)</a>
  <div class="Nx9bqj">₹65,999</div>
  <div class="XQDdHH">4.6</div>
  <img src="https://rukminim.example.com/iphone15.jpg">
</div>
<div data-id="A2">
  <a class="wjcEIp" href="/spigen-case/p/itm456">Spigen Case for iPhone 15</a>
  <div class="Nx9bqj">₹999</div>
</div>
<div data-id="A3">
  <a class="wjcEIp" href="/apple-iphone-15-plus/p/itm789">Apple iPhone 15 Plus</a>
</div>
<div data-id="A4">
  <a href="https://www.flipkart.com/compare?x=1">compare</a>
  <div class="KzDlHZ">Apple iPhone 15 Pro</div>
  <div class="Nx9bqj">₹1,19,900</div>
</div>
</body></html>`

func TestSiteExtractor_Flipkart(t *testing.T) {
	session := &htmlSession{html: flipkartPage}
	e := newExtractor(t, models.SourceFlipkart)

	got, err := e.Extract(context.Background(), "iphone 15", session)
	require.NoError(t, err)

	searchURL := "https://www.flipkart.com/search?q=iphone+15"
	assert.Equal(t, []string{searchURL}, session.opened)

	want := []models.RawCandidate{
		{
			Title:      "Apple iPhone 15 (Black, 128 GB)",
			PriceText:  "₹65,999",
			RatingText: "4.6",
			URL:        "https://www.flipkart.com/apple-iphone-15/p/itm123",
			ImageURL:   "https://rukminim.example.com/iphone15.jpg",
			Source:     models.SourceFlipkart,
		},
		{
			Title:      "Apple iPhone 15 Pro",
			PriceText:  "₹1,19,900",
			RatingText: models.NotAvailable,
			URL:        searchURL,
			ImageURL:   models.NotAvailable,
			Source:     models.SourceFlipkart,
		},
	}
	assert.Equal(t, want, got)
}

func TestSiteExtractor_TooFewContainers(t *testing.T) {
	// Flipkart needs at least three containers from one locator
	html := `<html><body>
<div data-id="A1"><a class="wjcEIp">Apple iPhone 15</a><div class="Nx9bqj">₹65,999</div></div>
<div data-id="A2"><a class="wjcEIp">Apple iPhone 15 Pro</a><div class="Nx9bqj">₹1,19,900</div></div>
<p>` + longFiller + `</p>
</body></html>`

	got, err := newExtractor(t, models.SourceFlipkart).Extract(context.Background(), "iphone 15", &htmlSession{html: html})
	require.NoError(t, err)
	assert.Empty(t, got)
}

const vijaySalesPage = `<html><body>
<div class="product-card">
  <a class="product-name" href="/apple-iphone-15/p">Apple iPhone 15 128GB</a>
  <span class="mrp">MRP ₹ 79,900 incl. taxes</span>
  <img src="/media/iphone15.jpg">
</div>
<div class="product-card">
  <a class="item-name" href="https://www.vijaysales.com/iphone-15-pro" title="Apple iPhone 15 Pro 256GB"></a>
  <div class="selling-price">₹1,34,900</div>
  <div class="rating">4.8</div>
</div>
</body></html>`

func TestSiteExtractor_VijaySalesFallbacks(t *testing.T) {
	got, err := newExtractor(t, models.SourceVijaySales).Extract(context.Background(), "iphone 15", &htmlSession{html: vijaySalesPage})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Apple iPhone 15 128GB", got[0].Title)
	assert.Equal(t, "₹ 79,900", got[0].PriceText, "price taken from container text")
	assert.Equal(t, "https://www.vijaysales.com/apple-iphone-15/p", got[0].URL)
	assert.Equal(t, "https://www.vijaysales.com/media/iphone15.jpg", got[0].ImageURL)
	assert.Equal(t, models.NotAvailable, got[0].RatingText)

	assert.Equal(t, "Apple iPhone 15 Pro 256GB", got[1].Title, "title read from the title attribute")
	assert.Equal(t, "₹1,34,900", got[1].PriceText)
	assert.Equal(t, "4.8", got[1].RatingText)
	assert.Equal(t, "https://www.vijaysales.com/iphone-15-pro", got[1].URL)
}

const amazonPage = `<html><body>
<div data-component-type="s-search-result">
  <h2><a href="/Samsung-Galaxy-S23/dp/B0BT9CXXXX"><span>Samsung Galaxy S23 5G (Cream, 8GB, 128GB)</span></a></h2>
  <span class="a-price"><span class="a-offscreen">₹45,999</span><span class="a-price-whole">45,999</span></span>
  <span class="a-icon-alt">4.3 out of 5 stars</span>
  <img class="s-image" src="https://m.media-amazon.com/images/s23.jpg">
</div>
<div data-component-type="s-search-result">
  <h2><a href="/Galaxy-Buds/dp/B0C"><span>Samsung Galaxy Buds FE</span></a></h2>
  <span class="a-icon-alt">Sponsored</span>
  <span class="a-icon-alt">4.1 out of 5 stars</span>
</div>
</body></html>`

func TestSiteExtractor_Amazon(t *testing.T) {
	got, err := newExtractor(t, models.SourceAmazon).Extract(context.Background(), "samsung galaxy", &htmlSession{html: amazonPage})
	require.NoError(t, err)

	require.Len(t, got, 1, "second result has no price")
	assert.Equal(t, "Samsung Galaxy S23 5G (Cream, 8GB, 128GB)", got[0].Title)
	assert.Equal(t, "45,999", got[0].PriceText)
	assert.Equal(t, "4.3 out of 5 stars", got[0].RatingText)
	assert.Equal(t, "https://www.amazon.in/Samsung-Galaxy-S23/dp/B0BT9CXXXX", got[0].URL)
	assert.Equal(t, "https://m.media-amazon.com/images/s23.jpg", got[0].ImageURL)
}

func TestSiteExtractor_JioMartHasNoRating(t *testing.T) {
	html := `<html><body>
<div class="plp-card-container">
  <a href="/p/groceries/tata-salt/590000454">
    <img src="https://www.jiomart.com/images/product/salt.jpg">
    <div class="plp-card-details-name">Tata Salt Vacuum Evaporated Iodised 1 kg</div>
    <span class="jm-heading-xxs">₹28.00</span>
  </a>
</div>
</body></html>`

	got, err := newExtractor(t, models.SourceJioMart).Extract(context.Background(), "tata salt", &htmlSession{html: html})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.NotAvailable, got[0].RatingText)
	assert.Equal(t, "₹28.00", got[0].PriceText)
	assert.Equal(t, "https://www.jiomart.com/p/groceries/tata-salt/590000454", got[0].URL)
}

func TestSiteExtractor_BlockedPage(t *testing.T) {
	html := `<html><head><title>Access Denied</title></head><body>
<h1>Access Denied</h1><p>Please complete the captcha to continue.</p></body></html>`

	got, err := newExtractor(t, models.SourceFlipkart).Extract(context.Background(), "iphone 15", &htmlSession{html: html})
	assert.Empty(t, got)
	require.Error(t, err)
	assert.ErrorIs(t, err, scraper.ErrBlocked)

	var perr *scraper.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, models.SourceFlipkart, perr.Source)
}

const longFiller = `Sorry, no results found for this search. Please check the spelling or
use more general terms. Browse our categories for electronics, fashion, home
and kitchen, beauty, toys and more. Free delivery on eligible orders.
Sorry, no results found for this search. Please check the spelling or
use more general terms. Browse our categories for electronics, fashion, home
and kitchen, beauty, toys and more. Free delivery on eligible orders.
Sorry, no results found for this search. Please check the spelling or
use more general terms. Browse our categories for electronics, fashion, home
and kitchen, beauty, toys and more. Free delivery on eligible orders.
Sorry, no results found for this search. Please check the spelling or
use more general terms. Browse our categories for electronics, fashion, home
and kitchen, beauty, toys and more. Free delivery on eligible orders.`

func TestSiteExtractor_EmptyResultsAreNotAnError(t *testing.T) {
	html := `<html><body><p>` + longFiller + `</p></body></html>`

	got, err := newExtractor(t, models.SourceAmazon).Extract(context.Background(), "zzzz qqqq", &htmlSession{html: html})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSiteExtractor_OpenFailure(t *testing.T) {
	session := &htmlSession{openErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}

	_, err := newExtractor(t, models.SourceJioMart).Extract(context.Background(), "tata salt", session)

	var perr *scraper.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "open", perr.Op)
	assert.Equal(t, models.SourceJioMart, perr.Source)
}

func TestSiteExtractor_Cancelled(t *testing.T) {
	cfg := sourceConfig(t, models.SourceFlipkart)
	cfg.ScrollPause = time.Minute
	e, err := scraper.NewSiteExtractor(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = e.Extract(ctx, "iphone 15", &htmlSession{html: flipkartPage})
	assert.ErrorIs(t, err, context.Canceled)
}

// gridDocument serves the same container list for every locator
type gridDocument struct {
	containers []scraper.Element
}

func (d *gridDocument) ScrollBy(context.Context, int) error { return nil }

func (d *gridDocument) FindAll(context.Context, scraper.Locator) ([]scraper.Element, error) {
	return d.containers, nil
}

func (d *gridDocument) WaitFor(context.Context, scraper.Locator, time.Duration) bool { return true }
func (d *gridDocument) Content(context.Context) (string, error)                      { return "", nil }
func (d *gridDocument) Title(context.Context) (string, error)                        { return "", nil }

type gridSession struct {
	doc *gridDocument
}

func (s *gridSession) Open(context.Context, string) (scraper.Document, error) { return s.doc, nil }
func (s *gridSession) Close() error                                           { return nil }

// listingCard answers the Flipkart title and price locators; a detached card
// fails every lookup
type listingCard struct {
	title    string
	detached bool
}

func (c *listingCard) FindOne(_ context.Context, loc scraper.Locator) (scraper.Element, error) {
	if c.detached {
		return nil, errors.New("node is detached from document")
	}
	switch loc {
	case "a.wjcEIp":
		return textNode(c.title), nil
	case "div.Nx9bqj":
		return textNode("₹65,999"), nil
	}
	return nil, scraper.ErrNotFound
}

func (c *listingCard) Text(context.Context) (string, error) { return c.title + " ₹65,999", nil }

func (c *listingCard) Attribute(context.Context, string) (string, bool, error) { return "", false, nil }

type textNode string

func (n textNode) FindOne(context.Context, scraper.Locator) (scraper.Element, error) {
	return nil, scraper.ErrNotFound
}

func (n textNode) Text(context.Context) (string, error) { return string(n), nil }

func (n textNode) Attribute(context.Context, string) (string, bool, error) { return "", false, nil }

func TestSiteExtractor_LookupErrorSkipsOnlyThatContainer(t *testing.T) {
	cfg := sourceConfig(t, models.SourceFlipkart)
	require.Equal(t, 20, cfg.MaxContainers)

	doc := &gridDocument{}
	for i := 0; i < 30; i++ {
		doc.containers = append(doc.containers, &listingCard{
			title:    fmt.Sprintf("Apple iPhone 15 Variant %02d", i),
			detached: i == 1,
		})
	}

	e, err := scraper.NewSiteExtractor(cfg, scraper.NewBotDetector())
	require.NoError(t, err)

	got, err := e.Extract(context.Background(), "iphone 15", &gridSession{doc: doc})
	require.NoError(t, err)

	require.Len(t, got, 19, "twenty containers processed, one of them failed")
	assert.Equal(t, "Apple iPhone 15 Variant 00", got[0].Title)
	assert.Equal(t, "Apple iPhone 15 Variant 02", got[1].Title)
	assert.Equal(t, "Apple iPhone 15 Variant 19", got[18].Title, "containers past the cap are ignored")
	assert.Equal(t, "₹65,999", got[0].PriceText)
}
