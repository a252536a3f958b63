package scraper

import (
	"context"
	"errors"
	"strings"
)

// Reader pulls a value out of a located element
type Reader func(ctx context.Context, el Element) (string, error)

// FirstMatching tries each locator in priority order inside scope and
// returns the first non-empty value that accept allows. Locators that match
// nothing are skipped. ErrNotFound means no locator produced an acceptable
// value; any other error is a lookup failure of the scope itself.
func FirstMatching(ctx context.Context, scope Element, locators []Locator, read Reader, accept func(string) bool) (string, error) {
	for _, loc := range locators {
		el, err := scope.FindOne(ctx, loc)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}

		value, err := read(ctx, el)
		if err != nil {
			return "", err
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if accept == nil || accept(value) {
			return value, nil
		}
	}
	return "", ErrNotFound
}

// FindContainers returns the elements of the first locator that yields at
// least min matches. Locators whose lookup fails are skipped. No qualifying
// locator is not an error: the result is simply empty.
func FindContainers(ctx context.Context, doc Document, locators []Locator, min int) ([]Element, Locator) {
	if min < 1 {
		min = 1
	}
	for _, loc := range locators {
		elements, err := doc.FindAll(ctx, loc)
		if err != nil {
			continue
		}
		if len(elements) >= min {
			return elements, loc
		}
	}
	return nil, ""
}

// TextThenAttributes reads the element text and falls back to the named
// attributes in order
func TextThenAttributes(attrs ...string) Reader {
	return func(ctx context.Context, el Element) (string, error) {
		text, err := el.Text(ctx)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) != "" {
			return text, nil
		}
		return readAttributes(ctx, el, attrs)
	}
}

// AttributesThenText reads the named attributes in order and falls back to
// the element text
func AttributesThenText(attrs ...string) Reader {
	return func(ctx context.Context, el Element) (string, error) {
		value, err := readAttributes(ctx, el, attrs)
		if err != nil || value != "" {
			return value, err
		}
		return el.Text(ctx)
	}
}

// AttributesOnly reads the named attributes in order
func AttributesOnly(attrs ...string) Reader {
	return func(ctx context.Context, el Element) (string, error) {
		return readAttributes(ctx, el, attrs)
	}
}

func readAttributes(ctx context.Context, el Element, attrs []string) (string, error) {
	for _, name := range attrs {
		value, ok, err := el.Attribute(ctx, name)
		if err != nil {
			return "", err
		}
		if ok && strings.TrimSpace(value) != "" {
			return value, nil
		}
	}
	return "", nil
}
