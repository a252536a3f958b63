package scraper

import (
	"context"
	"time"
)

// Locator is an opaque, source-supplied element descriptor. Both bundled
// providers interpret it as a CSS selector; the extraction logic never does.
type Locator string

// SessionFactory hands out provider sessions. Each query owns one session.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

// Session is one navigable browsing context. It is not safe for concurrent
// navigation and is closed exactly once by its owner.
type Session interface {
	// Open navigates to url and returns the document once the provider's
	// settle period has elapsed
	Open(ctx context.Context, url string) (Document, error)
	Close() error
}

// Document is a loaded page
type Document interface {
	ScrollBy(ctx context.Context, pixels int) error
	FindAll(ctx context.Context, loc Locator) ([]Element, error)
	// WaitFor reports whether loc appeared before timeout
	WaitFor(ctx context.Context, loc Locator, timeout time.Duration) bool
	// Content returns the visible page text
	Content(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
}

// Element is a located node
type Element interface {
	// FindOne returns ErrNotFound when nothing in scope matches
	FindOne(ctx context.Context, loc Locator) (Element, error)
	Text(ctx context.Context) (string, error)
	// Attribute returns false when the attribute is absent
	Attribute(ctx context.Context, name string) (string, bool, error)
}
