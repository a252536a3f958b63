package browser

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"pricecompare/logger"
	"pricecompare/scraper"
)

const systemChromium = "/usr/bin/chromium-browser"

// RodConfig configures the headless Chromium provider
type RodConfig struct {
	Bin               string
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
	// A settle period drawn from [SettleMin, SettleMax] follows every load
	SettleMin      time.Duration
	SettleMax      time.Duration
	ViewportWidth  int
	ViewportHeight int
}

// RodProvider owns one Chromium process. Sessions are isolated incognito
// contexts inside it.
type RodProvider struct {
	cfg     RodConfig
	browser *rod.Browser
}

// LaunchRod starts Chromium and connects to it
func LaunchRod(cfg RodConfig) (*RodProvider, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(true).
		Leakless(false)

	switch {
	case cfg.Bin != "":
		l = l.Bin(cfg.Bin)
	default:
		if _, err := os.Stat(systemChromium); err == nil {
			l = l.Bin(systemChromium)
			logger.Log.Info().Str("bin", systemChromium).Msg("Using system Chromium")
		} else {
			logger.Log.Info().Msg("Using auto-detected Chromium")
		}
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	logger.Log.Info().Str("control_url", controlURL).Msg("Browser started")

	return &RodProvider{cfg: cfg, browser: b}, nil
}

// NewSession opens a fresh incognito context with a single page. The
// session outlives ctx so that teardown is never cut short.
func (p *RodProvider) NewSession(ctx context.Context) (scraper.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	incognito, err := p.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	if p.cfg.ViewportWidth > 0 && p.cfg.ViewportHeight > 0 {
		err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             p.cfg.ViewportWidth,
			Height:            p.cfg.ViewportHeight,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			logger.Log.Debug().Err(err).Msg("Failed to set viewport")
		}
	}
	if p.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: p.cfg.UserAgent}); err != nil {
			logger.Log.Debug().Err(err).Msg("Failed to set user agent")
		}
	}

	return &rodSession{cfg: p.cfg, incognito: incognito, page: page}, nil
}

// Close shuts the browser down
func (p *RodProvider) Close() error {
	if p.browser == nil {
		return nil
	}
	return p.browser.Close()
}

type rodSession struct {
	cfg       RodConfig
	incognito *rod.Browser
	page      *rod.Page
}

func (s *rodSession) Open(ctx context.Context, url string) (scraper.Document, error) {
	page := s.page.Context(ctx)

	timeout := s.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	nav := page.Timeout(timeout)
	defer nav.CancelTimeout()

	if err := nav.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := nav.WaitLoad(); err != nil {
		return nil, fmt.Errorf("load %s: %w", url, err)
	}

	if err := sleep(ctx, settle(s.cfg.SettleMin, s.cfg.SettleMax)); err != nil {
		return nil, err
	}
	return &rodDocument{page: s.page}, nil
}

func (s *rodSession) Close() error {
	return errors.Join(s.page.Close(), s.incognito.Close())
}

type rodDocument struct {
	page *rod.Page
}

func (d *rodDocument) ScrollBy(ctx context.Context, pixels int) error {
	_, err := d.page.Context(ctx).Eval(`(y) => window.scrollBy(0, y)`, pixels)
	return err
}

func (d *rodDocument) FindAll(ctx context.Context, loc scraper.Locator) ([]scraper.Element, error) {
	found, err := d.page.Context(ctx).Elements(string(loc))
	if err != nil {
		return nil, err
	}
	elements := make([]scraper.Element, len(found))
	for i, el := range found {
		elements[i] = &rodElement{el: el}
	}
	return elements, nil
}

func (d *rodDocument) WaitFor(ctx context.Context, loc scraper.Locator, timeout time.Duration) bool {
	wait := d.page.Context(ctx).Timeout(timeout)
	defer wait.CancelTimeout()

	_, err := wait.Element(string(loc))
	return err == nil
}

func (d *rodDocument) Content(ctx context.Context) (string, error) {
	res, err := d.page.Context(ctx).Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (d *rodDocument) Title(ctx context.Context) (string, error) {
	info, err := d.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

type rodElement struct {
	el *rod.Element
}

// FindOne does not wait: the page has already settled
func (e *rodElement) FindOne(ctx context.Context, loc scraper.Locator) (scraper.Element, error) {
	found, err := e.el.Context(ctx).Elements(string(loc))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, scraper.ErrNotFound
	}
	return &rodElement{el: found[0]}, nil
}

// Text prefers the rendered text and falls back to textContent, which also
// covers visually hidden nodes
func (e *rodElement) Text(ctx context.Context) (string, error) {
	el := e.el.Context(ctx)
	text, err := el.Text()
	if err == nil && text != "" {
		return text, nil
	}
	prop, propErr := el.Property("textContent")
	if propErr != nil {
		if err != nil {
			return "", err
		}
		return "", propErr
	}
	return prop.Str(), nil
}

func (e *rodElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	value, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, err
	}
	if value == nil {
		return "", false, nil
	}
	return *value, true, nil
}

func settle(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

func sleep(ctx context.Context, d time.Duration) error {
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
