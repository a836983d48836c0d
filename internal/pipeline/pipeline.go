package pipeline

import (
	"log/slog"
	"strings"
	"time"

	"github.com/IshaanNene/NewsHarvest/internal/config"
	"github.com/IshaanNene/NewsHarvest/internal/parser"
	"github.com/IshaanNene/NewsHarvest/internal/types"
)

// Middleware processes a record and returns the (possibly modified) record.
// Return nil to drop the record from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms a record. Return nil to drop the record.
	Process(rec *types.NewsRecord) (*types.NewsRecord, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Default builds the chain every harvested record goes through.
func Default(cfg *config.Config, window parser.DateWindow, logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(&TrimMiddleware{})
	p.Use(&RequiredFieldsMiddleware{Fields: []string{"title", "url"}})
	p.Use(&TruncateMiddleware{MaxRunes: cfg.Extract.MaxContentRunes})
	p.Use(&DateWindowMiddleware{Window: window})
	return p
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the record through all middleware in order.
func (p *Pipeline) Process(rec *types.NewsRecord) (*types.NewsRecord, error) {
	current := rec

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage:  mw.Name(),
				Record: current,
				Err:    err,
			}
		}
		if result == nil {
			p.logger.Debug("record dropped", "stage", mw.Name(), "url", rec.URL)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// --- Built-in Middleware ---

// TrimMiddleware trims surrounding whitespace and collapses the title onto
// one line.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(rec *types.NewsRecord) (*types.NewsRecord, error) {
	rec.Title = parser.CollapseSpace(rec.Title)
	rec.Date = strings.TrimSpace(rec.Date)
	rec.URL = strings.TrimSpace(rec.URL)
	rec.Content = strings.TrimSpace(rec.Content)
	rec.Source = strings.TrimSpace(rec.Source)
	return rec, nil
}

// RequiredFieldsMiddleware drops records with an empty required field.
type RequiredFieldsMiddleware struct {
	Fields []string
}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(rec *types.NewsRecord) (*types.NewsRecord, error) {
	values := rec.Fields()
	for _, field := range m.Fields {
		for i, name := range types.FieldNames {
			if name == field && values[i] == "" {
				return nil, nil
			}
		}
	}
	return rec, nil
}

// TruncateMiddleware caps content at MaxRunes characters.
type TruncateMiddleware struct {
	MaxRunes int
}

func (m *TruncateMiddleware) Name() string { return "truncate" }

func (m *TruncateMiddleware) Process(rec *types.NewsRecord) (*types.NewsRecord, error) {
	if m.MaxRunes > 0 {
		rec.Content = parser.Truncate(rec.Content, m.MaxRunes)
	}
	return rec, nil
}

// DateWindowMiddleware replaces any date that is neither inside the window
// nor the window's coarse fallback with the fallback.
type DateWindowMiddleware struct {
	Window parser.DateWindow
}

func (m *DateWindowMiddleware) Name() string { return "date_window" }

func (m *DateWindowMiddleware) Process(rec *types.NewsRecord) (*types.NewsRecord, error) {
	if rec.Date == m.Window.Fallback() {
		return rec, nil
	}
	t, err := time.Parse(config.DateLayout, rec.Date)
	if err != nil || !m.Window.Contains(t) {
		rec.Date = m.Window.Fallback()
	}
	return rec, nil
}
