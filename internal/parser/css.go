package parser

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var contentClassPattern = regexp.MustCompile(`(?i)content|article|detail|post`)

// containerSelector lists the elements that may wrap an article body.
const containerSelector = "div, section, article, main"

// ClassPattern matches containers carrying a class token that matches re.
func ClassPattern(re *regexp.Regexp) Strategy {
	return Strategy{
		Name: "class-pattern",
		Find: func(doc *goquery.Document) []*html.Node {
			return doc.Find(containerSelector).FilterFunction(func(_ int, s *goquery.Selection) bool {
				return HasClassMatching(s, re)
			}).Nodes
		},
	}
}

// Element matches every element with the given tag.
func Element(tag string) Strategy {
	return Strategy{
		Name: tag,
		Find: func(doc *goquery.Document) []*html.Node {
			return doc.Find(tag).Nodes
		},
	}
}

// HasClassMatching reports whether any class token of s matches re.
func HasClassMatching(s *goquery.Selection, re *regexp.Regexp) bool {
	class, ok := s.Attr("class")
	if !ok {
		return false
	}
	for _, token := range strings.Fields(class) {
		if re.MatchString(token) {
			return true
		}
	}
	return false
}

// ResolveLink turns href into an absolute http(s) URL against base.
// Fragment-only, javascript:, mailto:, tel: and data: links are rejected.
func ResolveLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return "", false
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if abs.Host == "" {
		return "", false
	}
	abs.Fragment = ""
	return abs.String(), true
}
