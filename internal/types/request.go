package types

import (
	"fmt"
	"net/http"
	"net/url"
)

// Request describes a single page to fetch.
type Request struct {
	// URL is the absolute target URL.
	URL string

	// Method is the HTTP method. Defaults to GET.
	Method string

	// Headers override the rotating identity headers.
	Headers http.Header

	// Encoding forces the body charset (e.g. "gb2312"). Empty means sniff.
	Encoding string
}

// NewRequest creates a GET request for an absolute URL.
func NewRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidURL, rawURL)
	}
	return &Request{
		URL:     u.String(),
		Method:  http.MethodGet,
		Headers: make(http.Header),
	}, nil
}

// WithEncoding sets the charset override and returns the request.
func (r *Request) WithEncoding(label string) *Request {
	r.Encoding = label
	return r
}
