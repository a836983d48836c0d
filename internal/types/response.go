package types

import (
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Response is a successfully fetched page with its body decoded to UTF-8.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       string

	// FinalURL is the URL after any redirects.
	FinalURL string

	// Attempts is how many tries the fetch needed.
	Attempts int

	FetchDuration time.Duration
	FetchedAt     time.Time

	doc *goquery.Document
}

// NewRenderedResponse wraps HTML read from a headless browser.
func NewRenderedResponse(finalURL, html string, duration time.Duration) *Response {
	return &Response{
		StatusCode:    http.StatusOK,
		Headers:       make(http.Header),
		Body:          html,
		FinalURL:      finalURL,
		Attempts:      1,
		FetchDuration: duration,
		FetchedAt:     time.Now(),
	}
}

// Document returns a parsed goquery document, lazily initializing it.
func (r *Response) Document() (*goquery.Document, error) {
	if r.doc != nil {
		return r.doc, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(r.Body))
	if err != nil {
		return nil, err
	}
	r.doc = doc
	return doc, nil
}
