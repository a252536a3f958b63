package scraper

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pricecompare/models"
)

//go:embed sources.yaml
var defaultSources []byte

// How a field's located element is read
const (
	ReadText            = "text"
	ReadAttributes      = "attributes"
	ReadAttributesFirst = "attributes_first"
)

// FieldConfig describes the locator chain and acceptance rule for one field
type FieldConfig struct {
	Locators   []Locator `yaml:"locators"`
	Read       string    `yaml:"read"`
	Attributes []string  `yaml:"attributes"`

	// title
	MinLength int `yaml:"min_length"`

	// price
	CurrencySymbols []string `yaml:"currency_symbols"`
	MinDigits       int      `yaml:"min_digits"`
	TextPattern     string   `yaml:"text_pattern"`

	// rating
	RequireDigit bool `yaml:"require_digit"`

	// url
	PathHints []string `yaml:"path_hints"`
}

// SourceConfig is everything the extractor needs to know about one site
type SourceConfig struct {
	ID        models.SourceID `yaml:"id"`
	Disabled  bool            `yaml:"disabled"`
	SearchURL string          `yaml:"search_url"`
	BaseURL   string          `yaml:"base_url"`

	ReadySignal  Locator       `yaml:"ready_signal"`
	ReadyTimeout time.Duration `yaml:"ready_timeout"`

	ScrollSteps  int           `yaml:"scroll_steps"`
	ScrollPixels int           `yaml:"scroll_pixels"`
	ScrollPause  time.Duration `yaml:"scroll_pause"`

	Containers    []Locator `yaml:"containers"`
	MinContainers int       `yaml:"min_containers"`
	MaxContainers int       `yaml:"max_containers"`

	Title  FieldConfig `yaml:"title"`
	Price  FieldConfig `yaml:"price"`
	Rating FieldConfig `yaml:"rating"`
	URL    FieldConfig `yaml:"url"`
	Image  FieldConfig `yaml:"image"`
}

type sourcesFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

// SearchURLFor fills the query placeholder with the form-encoded query
func (c SourceConfig) SearchURLFor(query string) string {
	return strings.ReplaceAll(c.SearchURL, "{query}", url.QueryEscape(query))
}

// Validate checks the fields the extractor cannot work without
func (c SourceConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("source id is required")
	}
	if !strings.Contains(c.SearchURL, "{query}") {
		return fmt.Errorf("source %s: search_url must contain {query}", c.ID)
	}
	if c.BaseURL != "" {
		if _, err := url.Parse(c.BaseURL); err != nil {
			return fmt.Errorf("source %s: invalid base_url: %w", c.ID, err)
		}
	}
	if len(c.Containers) == 0 {
		return fmt.Errorf("source %s: at least one container locator is required", c.ID)
	}
	if len(c.Title.Locators) == 0 {
		return fmt.Errorf("source %s: at least one title locator is required", c.ID)
	}
	if len(c.Price.Locators) == 0 && c.Price.TextPattern == "" {
		return fmt.Errorf("source %s: price needs a locator or a text_pattern", c.ID)
	}
	if c.MaxContainers < 0 || c.MinContainers < 0 {
		return fmt.Errorf("source %s: container bounds must not be negative", c.ID)
	}
	for name, f := range map[string]FieldConfig{"title": c.Title, "price": c.Price, "rating": c.Rating, "url": c.URL, "image": c.Image} {
		switch f.Read {
		case "", ReadText, ReadAttributes, ReadAttributesFirst:
		default:
			return fmt.Errorf("source %s: unknown read mode %q for %s", c.ID, f.Read, name)
		}
	}
	return nil
}

// DefaultSources returns the bundled source table
func DefaultSources() ([]SourceConfig, error) {
	return ParseSources(defaultSources)
}

// LoadSources reads a source table from path, or the bundled one when path
// is empty
func LoadSources(path string) ([]SourceConfig, error) {
	if path == "" {
		return DefaultSources()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}
	return ParseSources(data)
}

// ParseSources decodes and validates a YAML source table. Disabled sources
// are dropped; order is preserved.
func ParseSources(data []byte) ([]SourceConfig, error) {
	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sources: %w", err)
	}

	seen := make(map[models.SourceID]bool, len(file.Sources))
	sources := make([]SourceConfig, 0, len(file.Sources))
	for _, src := range file.Sources {
		if err := src.Validate(); err != nil {
			return nil, err
		}
		if seen[src.ID] {
			return nil, fmt.Errorf("duplicate source %s", src.ID)
		}
		seen[src.ID] = true
		if src.Disabled {
			continue
		}
		sources = append(sources, src)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no enabled sources configured")
	}
	return sources, nil
}
