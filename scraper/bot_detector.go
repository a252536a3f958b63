package scraper

import (
	"regexp"
	"strings"
)

// Block kinds reported by the detector
const (
	BlockCaptcha   = "captcha"
	BlockHTTPError = "http_error"
	BlockBotWall   = "bot_wall"
)

// BlockVerdict is the detector's reading of a page that produced no results
type BlockVerdict struct {
	Blocked bool
	Kind    string
	Score   float64
	Reasons []string
}

// BotDetector recognises anti-bot interstitials, CAPTCHAs and error pages so
// an empty page can be told apart from an empty result list
type BotDetector struct {
	wallPatterns    []*regexp.Regexp
	captchaPatterns []*regexp.Regexp
	errorPatterns   []*regexp.Regexp
	threshold       float64
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// NewBotDetector creates a detector with the stock pattern set
func NewBotDetector() *BotDetector {
	return &BotDetector{
		wallPatterns: compileAll(
			`unfortunately we are unable`,
			`access denied`,
			`bot detected`,
			`are you a robot`,
			`security check`,
			`checking your browser`,
			`ddos protection`,
			`distil networks`,
			`request blocked`,
			`too many requests`,
			`unusual traffic`,
		),
		captchaPatterns: compileAll(
			`captcha`,
			`verify you are human`,
			`type the characters you see`,
			`select all images`,
			`click the checkbox`,
		),
		errorPatterns: compileAll(
			`403 forbidden`,
			`429 too many requests`,
			`503 service unavailable`,
			`site temporarily unavailable`,
			`something went wrong`,
		),
		threshold: 0.45,
	}
}

// Inspect scores a page. Short pages carrying any indicator score higher:
// real result pages are long.
func (bd *BotDetector) Inspect(pageContent, pageTitle string) BlockVerdict {
	content := strings.ToLower(pageContent + " " + pageTitle)

	var verdict BlockVerdict
	captcha, httpErr := false, false

	for _, pattern := range bd.wallPatterns {
		if pattern.MatchString(content) {
			verdict.Score += 0.3
			verdict.Reasons = append(verdict.Reasons, pattern.String())
		}
	}
	for _, pattern := range bd.captchaPatterns {
		if pattern.MatchString(content) {
			verdict.Score += 0.5
			verdict.Reasons = append(verdict.Reasons, "captcha: "+pattern.String())
			captcha = true
		}
	}
	for _, pattern := range bd.errorPatterns {
		if pattern.MatchString(content) {
			verdict.Score += 0.4
			verdict.Reasons = append(verdict.Reasons, "http error: "+pattern.String())
			httpErr = true
		}
	}

	if len(content) < 1000 && verdict.Score > 0 {
		verdict.Score += 0.2
		verdict.Reasons = append(verdict.Reasons, "very short content")
	}
	if verdict.Score > 1.0 {
		verdict.Score = 1.0
	}

	verdict.Blocked = verdict.Score >= bd.threshold
	switch {
	case !verdict.Blocked:
	case captcha:
		verdict.Kind = BlockCaptcha
	case httpErr:
		verdict.Kind = BlockHTTPError
	default:
		verdict.Kind = BlockBotWall
	}
	return verdict
}

// Reason joins the matched indicators for logs and reports
func (v BlockVerdict) Reason() string {
	return v.Kind + " (" + strings.Join(v.Reasons, "; ") + ")"
}
