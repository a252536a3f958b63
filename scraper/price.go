package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"pricecompare/models"
)

// MinPriceAmount rejects fragments such as a rating digit captured as a price
const MinPriceAmount = 10

var (
	nonPriceChars = regexp.MustCompile(`[^0-9,]`)
	digitRun      = regexp.MustCompile(`[0-9]+`)
)

// NormalizePrice converts a displayed price into whole currency units.
// Everything except digits and the grouping separator is dropped, then the
// separator itself, and the first digit run is parsed. The same rule applies
// to every source.
func NormalizePrice(text string) (int64, bool) {
	text = strings.TrimSpace(text)
	if text == "" || text == models.NotAvailable {
		return 0, false
	}

	cleaned := nonPriceChars.ReplaceAllString(text, "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")

	run := digitRun.FindString(cleaned)
	if run == "" {
		return 0, false
	}

	value, err := strconv.ParseInt(run, 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// PricePredicate accepts text that plausibly holds a price: it contains one
// of the currency symbols or a run of at least minDigits digits.
func PricePredicate(symbols []string, minDigits int) func(string) bool {
	if minDigits < 1 {
		minDigits = 1
	}
	run := regexp.MustCompile(`[0-9]{` + strconv.Itoa(minDigits) + `,}`)

	return func(text string) bool {
		if text == "" {
			return false
		}
		for _, symbol := range symbols {
			if symbol != "" && strings.Contains(text, symbol) {
				return true
			}
		}
		return run.MatchString(text)
	}
}

// FindPriceText returns the first match of pattern in a block of text, used
// when no price element could be located inside a container
func FindPriceText(text string, pattern *regexp.Regexp) (string, bool) {
	if pattern == nil {
		return "", false
	}
	match := strings.TrimSpace(pattern.FindString(text))
	return match, match != ""
}
