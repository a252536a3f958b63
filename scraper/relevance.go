package scraper

import (
	"strings"
	"unicode/utf8"
)

var (
	mainDeviceTerms = []string{"iphone", "phone", "mobile", "samsung", "pixel", "oneplus"}
	accessoryTerms  = []string{"cover", "case", "protector", "screen guard", "tempered glass", "pouch", "skin"}

	stopWords = map[string]struct{}{
		"for": {}, "the": {}, "a": {}, "an": {}, "in": {}, "on": {},
		"at": {}, "to": {}, "and": {}, "or": {}, "with": {},
	}
)

// IsRelevant reports whether a listing title answers the query.
// Accessories are rejected when the query names a main device, and at least
// half of the significant query tokens must appear in the title.
func IsRelevant(title, query string) bool {
	if utf8.RuneCountInString(title) < 3 {
		return false
	}

	titleLower := strings.ToLower(title)
	queryLower := strings.ToLower(query)

	if containsAny(queryLower, mainDeviceTerms) && containsAny(titleLower, accessoryTerms) {
		return false
	}

	tokens := SignificantTokens(queryLower)
	if len(tokens) == 0 {
		return false
	}

	matches := 0
	for _, token := range tokens {
		if strings.Contains(titleLower, token) {
			matches++
		}
	}

	return float64(matches) >= float64(len(tokens))/2
}

// SignificantTokens splits a case-folded query on whitespace, keeping tokens
// longer than two characters that are not stop words
func SignificantTokens(query string) []string {
	var tokens []string
	for _, word := range strings.Fields(query) {
		if utf8.RuneCountInString(word) <= 2 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
