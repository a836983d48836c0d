// Package source holds the site-family adapters that discover candidate
// news links. Adapters never touch the record set directly: each candidate
// is handed to a Collector owned by the engine.
package source

import (
	"context"
	"log/slog"
	"strings"

	"github.com/IshaanNene/NewsHarvest/internal/config"
	"github.com/IshaanNene/NewsHarvest/internal/parser"
	"github.com/IshaanNene/NewsHarvest/internal/types"
)

// Candidate is a discovered link not yet filtered, deduplicated, or fetched.
type Candidate struct {
	Title string
	URL   string

	// Snippet is inline summary text shown next to the link, if any.
	Snippet string

	// Source labels the site that produced the candidate.
	Source string
}

// Verdict is the collector's answer for one candidate.
type Verdict int

const (
	Rejected Verdict = iota
	Recorded
	// Halt means the run is being interrupted; stop discovering.
	Halt
)

func (v Verdict) String() string {
	switch v {
	case Rejected:
		return "rejected"
	case Recorded:
		return "recorded"
	case Halt:
		return "halt"
	default:
		return "unknown"
	}
}

// Collector filters, deduplicates, fetches and records one candidate.
type Collector func(ctx context.Context, c Candidate) Verdict

// PageRequest asks for a listing page.
type PageRequest struct {
	URL      string
	Encoding string

	// Render prefers the headless browser when one is running.
	Render bool
}

// PageSource retrieves listing pages.
type PageSource interface {
	Page(ctx context.Context, req PageRequest) (*types.Response, error)
}

// Pacer blocks between network calls.
type Pacer interface {
	Pause(ctx context.Context, d config.DelayRange) error
}

// Env is what the engine lends an adapter for one Discover call.
type Env struct {
	Pages  PageSource
	Pacer  Pacer
	Logger *slog.Logger
}

// Adapter enumerates candidates for one site family.
type Adapter interface {
	// Name identifies the adapter in logs and the registry.
	Name() string

	// Rendering reports whether listing pages want a headless browser.
	Rendering() bool

	// Discover walks the family's listing pages and hands every candidate
	// to collect. Only context errors are returned; per-page failures are
	// logged and skipped.
	Discover(ctx context.Context, env Env, collect Collector) error

	// Accepts applies the family's keyword and length rules.
	Accepts(c Candidate) bool
}

// containsAny reports whether s contains at least one keyword.
func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// firstN returns at most n leading keywords.
func firstN(keywords []string, n int) []string {
	if n < len(keywords) {
		return keywords[:n]
	}
	return keywords
}

// titleOf collapses the visible text of a link into a single-line title.
func titleOf(text string) string {
	return parser.CollapseSpace(text)
}
