package fetcher

import (
	"strings"
)

// challengeURLMarkers appear in the final URL of anti-bot redirects.
var challengeURLMarkers = []string{
	"/antispider",
	"wappass.baidu.com",
	"/captcha",
}

// challengeTitleMarkers appear in the <title> of verification pages.
var challengeTitleMarkers = []string{
	"安全验证",
	"验证码",
	"访问验证",
	"just a moment",
	"attention required",
}

// DetectChallenge reports whether a page is an anti-bot verification page
// rather than content, and which marker matched.
func DetectChallenge(finalURL, html string) (string, bool) {
	lowerURL := strings.ToLower(finalURL)
	for _, m := range challengeURLMarkers {
		if strings.Contains(lowerURL, m) {
			return m, true
		}
	}

	title := strings.ToLower(extractBetween(html, "<title>", "</title>"))
	if title == "" {
		title = strings.ToLower(extractBetween(html, "<TITLE>", "</TITLE>"))
	}
	for _, m := range challengeTitleMarkers {
		if strings.Contains(title, m) {
			return m, true
		}
	}
	return "", false
}

// extractBetween extracts a substring between two delimiters.
func extractBetween(s, start, end string) string {
	idx := strings.Index(s, start)
	if idx < 0 {
		return ""
	}
	s = s[idx+len(start):]
	idx = strings.Index(s, end)
	if idx < 0 {
		return ""
	}
	return s[:idx]
}
