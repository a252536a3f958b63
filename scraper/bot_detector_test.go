package scraper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBotDetector_Inspect(t *testing.T) {
	bd := NewBotDetector()

	tests := []struct {
		name    string
		content string
		title   string
		blocked bool
		kind    string
	}{
		{"captcha wall", "Enter the characters you see below. Type the characters you see in this image.", "Amazon.in", true, BlockCaptcha},
		{"access denied", "Access Denied. You don't have permission to access this server.", "Access Denied", true, BlockBotWall},
		{"rate limited", "429 Too Many Requests", "Error", true, BlockHTTPError},
		{"ordinary empty results", strings.Repeat("Sorry, no results found. Try a different search term. ", 30), "Search", false, ""},
		{"empty page", "", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := bd.Inspect(tt.content, tt.title)
			assert.Equal(t, tt.blocked, v.Blocked, "score %.2f reasons %v", v.Score, v.Reasons)
			assert.Equal(t, tt.kind, v.Kind)
		})
	}
}

func TestBotDetector_LongPageNeedsStrongSignal(t *testing.T) {
	bd := NewBotDetector()
	page := strings.Repeat("Great deals on electronics and fashion. ", 50) + " security check"

	v := bd.Inspect(page, "Shop")
	assert.False(t, v.Blocked, "a single weak indicator on a full page is not a wall")
	assert.InDelta(t, 0.3, v.Score, 0.001)
}
