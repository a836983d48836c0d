package parser

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/NewsHarvest/internal/config"
)

// FailedContent is the sentinel body recorded when no article text could
// be located.
const FailedContent = "内容获取失败"

// noiseSelector matches markup that never carries article text.
const noiseSelector = "script, style, iframe, nav, footer, header, aside"

// Strategy locates candidate article containers in a document. Candidates
// are returned in document order.
type Strategy struct {
	Name string
	Find func(doc *goquery.Document) []*html.Node
}

// DefaultStrategies returns the body heuristics in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		ClassPattern(contentClassPattern),
		IDPattern(contentIDKeywords...),
		Element("article"),
		Element("body"),
	}
}

// Extractor pulls the main article text out of arbitrary HTML.
type Extractor struct {
	strategies []Strategy
	minRunes   int
	maxRunes   int
	logger     *slog.Logger
}

// Option configures the Extractor.
type Option func(*Extractor)

// WithStrategies replaces the strategy list.
func WithStrategies(s ...Strategy) Option {
	return func(e *Extractor) { e.strategies = s }
}

// NewExtractor creates an Extractor with the default strategy list.
func NewExtractor(cfg config.ExtractConfig, logger *slog.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		strategies: DefaultStrategies(),
		minRunes:   cfg.MinContentRunes,
		maxRunes:   cfg.MaxContentRunes,
		logger:     logger.With("component", "extractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Content returns the best-effort article body of rawHTML, or
// FailedContent. It never fails.
func (e *Extractor) Content(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		e.logger.Debug("parse failed", "error", err)
		return FailedContent
	}
	return e.ContentFromDocument(doc)
}

// ContentFromDocument is Content for an already parsed document. The noise
// elements are removed from doc in place.
func (e *Extractor) ContentFromDocument(doc *goquery.Document) string {
	doc.Find(noiseSelector).Remove()

	for _, s := range e.strategies {
		for _, node := range s.Find(doc) {
			text := NodeText(node)
			if RuneLen(text) > e.minRunes {
				e.logger.Debug("content located", "strategy", s.Name, "runes", RuneLen(text))
				return Truncate(text, e.maxRunes)
			}
		}
	}
	return FailedContent
}
