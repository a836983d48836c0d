package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/IshaanNene/NewsHarvest/internal/config"
	"github.com/IshaanNene/NewsHarvest/internal/fetcher"
	"github.com/IshaanNene/NewsHarvest/internal/observability"
	"github.com/IshaanNene/NewsHarvest/internal/parser"
	"github.com/IshaanNene/NewsHarvest/internal/source"
	"github.com/IshaanNene/NewsHarvest/internal/types"
)

// State represents the engine's current lifecycle state.
type State int32

const (
	StateIdle     State = 0
	StateRunning  State = 1
	StateStopping State = 2
	StateStopped  State = 3
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Candidate verdict labels used in stats, metrics and logs.
const (
	verdictRecorded    = "recorded"
	verdictFiltered    = "filtered"
	verdictDuplicate   = "duplicate"
	verdictFetchFailed = "fetch_failed"
	verdictDropped     = "dropped"
)

// Stats tracks run statistics.
type Stats struct {
	Candidates     atomic.Int64
	Filtered       atomic.Int64
	Duplicates     atomic.Int64
	FetchFailed    atomic.Int64
	Dropped        atomic.Int64
	Records        atomic.Int64
	ContentMissing atomic.Int64
	StartTime      time.Time
	mu             sync.RWMutex
	bySource       map[string]int64
}

func (s *Stats) addRecord(source string) {
	s.Records.Add(1)
	s.mu.Lock()
	s.bySource[source]++
	s.mu.Unlock()
}

// BySource returns a copy of the record count per source label.
func (s *Stats) BySource() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64, len(s.bySource))
	for k, v := range s.bySource {
		out[k] = v
	}
	return out
}

// Snapshot returns a copy of stats safe for reading.
func (s *Stats) Snapshot() map[string]any {
	return map[string]any{
		"candidates":      s.Candidates.Load(),
		"filtered":        s.Filtered.Load(),
		"duplicates":      s.Duplicates.Load(),
		"fetch_failed":    s.FetchFailed.Load(),
		"dropped":         s.Dropped.Load(),
		"records":         s.Records.Load(),
		"content_missing": s.ContentMissing.Load(),
		"elapsed":         time.Since(s.StartTime).Round(time.Millisecond).String(),
	}
}

// Pipeline post-processes every record before it is kept.
type Pipeline interface {
	Process(rec *types.NewsRecord) (*types.NewsRecord, error)
}

// Engine runs the source adapters in order and owns the deduplication
// ledger and the record list.
type Engine struct {
	cfg       *config.Config
	logger    *slog.Logger
	fetcher   fetcher.Fetcher
	renderer  fetcher.Renderer
	pacer     source.Pacer
	metrics   *observability.Metrics
	pipeline  Pipeline
	extractor *parser.Extractor
	window    parser.DateWindow
	ledger    *Ledger

	state        atomic.Int32
	stats        *Stats
	browserTried bool
	browserReady atomic.Bool
	degraded     atomic.Bool

	mu      sync.RWMutex
	records []types.NewsRecord
}

// New creates an Engine that fetches candidate pages with f.
func New(cfg *config.Config, logger *slog.Logger, f fetcher.Fetcher) (*Engine, error) {
	window, err := parser.NewDateWindow(cfg.Crawl.Window)
	if err != nil {
		return nil, fmt.Errorf("date window: %w", err)
	}
	logger = logger.With("component", "engine")
	return &Engine{
		cfg:       cfg,
		logger:    logger,
		fetcher:   f,
		pacer:     fetcher.NewPacer(),
		extractor: parser.NewExtractor(cfg.Extract, logger),
		window:    window,
		ledger:    NewLedger(1024),
		stats:     &Stats{bySource: make(map[string]int64)},
	}, nil
}

// SetRenderer enables browser rendering for adapters that want it.
func (e *Engine) SetRenderer(r fetcher.Renderer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.renderer = r
}

// SetPacer replaces the pacer used between candidates.
func (e *Engine) SetPacer(p source.Pacer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pacer = p
}

// SetMetrics records candidate verdicts and records.
func (e *Engine) SetMetrics(m *observability.Metrics) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics = m
}

// SetPipeline sets the record pipeline.
func (e *Engine) SetPipeline(p Pipeline) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pipeline = p
}

// Window returns the parsed target window.
func (e *Engine) Window() parser.DateWindow {
	return e.window
}

// Run executes the adapters in order and returns every record kept. When
// ctx is cancelled the records gathered so far are returned together with
// ctx's error. The browser, if started, is torn down exactly once before
// Run returns.
func (e *Engine) Run(ctx context.Context, adapters []source.Adapter) ([]types.NewsRecord, error) {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, types.ErrEngineRunning
	}
	e.stats.StartTime = time.Now()
	e.logger.Info("engine starting",
		"adapters", len(adapters),
		"window", e.cfg.Crawl.Window.Start+".."+e.cfg.Crawl.Window.End,
	)

	var teardown sync.Once
	defer teardown.Do(e.closeRenderer)

	for _, a := range adapters {
		if ctx.Err() != nil {
			break
		}
		if a.Rendering() {
			e.startRenderer()
		}
		e.runAdapter(ctx, a)
	}

	err := ctx.Err()
	if err != nil {
		e.state.Store(int32(StateStopping))
		e.logger.Warn("run interrupted, keeping partial results", "records", e.stats.Records.Load())
	}
	teardown.Do(e.closeRenderer)
	e.state.Store(int32(StateStopped))

	e.logger.Info("engine stopped", "stats", e.stats.Snapshot(), "by_source", e.stats.BySource())
	return e.Records(), err
}

// Records returns a copy of the records kept so far.
func (e *Engine) Records() []types.NewsRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]types.NewsRecord, len(e.records))
	copy(out, e.records)
	return out
}

// Stats returns the current run statistics.
func (e *Engine) Stats() *Stats {
	return e.stats
}

// GetState returns the current engine state.
func (e *Engine) GetState() State {
	return State(e.state.Load())
}

// Degraded reports whether a wanted browser could not be started.
func (e *Engine) Degraded() bool {
	return e.degraded.Load()
}

// startRenderer launches the browser the first time an adapter asks for
// it. Failure is logged once and the run continues over HTTP.
func (e *Engine) startRenderer() {
	if e.renderer == nil || e.browserTried {
		return
	}
	e.browserTried = true
	if err := e.renderer.Start(); err != nil {
		e.degraded.Store(true)
		e.logger.Warn("browser unavailable, continuing over HTTP", "error", err)
		return
	}
	e.browserReady.Store(true)
	e.logger.Info("browser ready")
}

func (e *Engine) closeRenderer() {
	if e.renderer == nil || !e.browserTried {
		return
	}
	e.browserReady.Store(false)
	if err := e.renderer.Close(); err != nil {
		e.logger.Error("browser close error", "error", err)
	}
}

// runAdapter runs one adapter. Panics and errors are logged and never
// abort the remaining adapters.
func (e *Engine) runAdapter(ctx context.Context, a source.Adapter) {
	logger := e.logger.With("adapter", a.Name())
	before := e.stats.Records.Load()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("adapter panicked", "panic", r)
		}
		logger.Info("adapter finished",
			"records", e.stats.Records.Load()-before,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	}()

	logger.Info("adapter starting")
	env := source.Env{Pages: &pageSource{e: e, logger: logger}, Pacer: e.pacer, Logger: logger}
	if err := a.Discover(ctx, env, e.collector(a, logger)); err != nil && ctx.Err() == nil {
		logger.Error("adapter failed", "error", err)
	}
}

// collector filters, claims, fetches and records one candidate.
func (e *Engine) collector(a source.Adapter, logger *slog.Logger) source.Collector {
	return func(ctx context.Context, c source.Candidate) source.Verdict {
		if ctx.Err() != nil {
			return source.Halt
		}
		e.stats.Candidates.Add(1)

		c.Title = parser.CollapseSpace(c.Title)
		if c.Title == "" || !a.Accepts(c) {
			e.stats.Filtered.Add(1)
			e.metrics.ObserveCandidate(c.Source, verdictFiltered)
			return source.Rejected
		}
		if !e.ledger.Add(c.URL) {
			e.stats.Duplicates.Add(1)
			e.metrics.ObserveCandidate(c.Source, verdictDuplicate)
			return source.Rejected
		}
		if err := e.pacer.Pause(ctx, e.cfg.Pacing.Candidate); err != nil {
			return source.Halt
		}

		rec, err := e.harvest(ctx, c)
		if err != nil {
			if ctx.Err() != nil {
				return source.Halt
			}
			e.stats.FetchFailed.Add(1)
			e.metrics.ObserveCandidate(c.Source, verdictFetchFailed)
			logger.Warn("candidate fetch failed", "url", c.URL, "error", err)
			return source.Rejected
		}

		if e.pipeline != nil {
			processed, err := e.pipeline.Process(rec)
			if err != nil || processed == nil {
				e.stats.Dropped.Add(1)
				e.metrics.ObserveCandidate(c.Source, verdictDropped)
				logger.Warn("pipeline dropped record", "url", c.URL, "error", err)
				return source.Rejected
			}
			rec = processed
		}

		e.keep(*rec)
		e.metrics.ObserveCandidate(c.Source, verdictRecorded)
		logger.Info("record",
			"title", runewidth.Truncate(rec.Title, 60, "..."),
			"date", rec.Date,
			"source", rec.Source,
		)
		return source.Recorded
	}
}

// harvest fetches the candidate's page and builds its record. Content
// falls back to the candidate's snippet when extraction fails.
func (e *Engine) harvest(ctx context.Context, c source.Candidate) (*types.NewsRecord, error) {
	req, err := types.NewRequest(c.URL)
	if err != nil {
		return nil, err
	}
	resp, err := e.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	content := parser.FailedContent
	if doc, err := resp.Document(); err == nil {
		content = e.extractor.ContentFromDocument(doc)
	}
	if content == parser.FailedContent {
		if c.Snippet != "" {
			content = parser.Truncate(c.Snippet, e.cfg.Extract.MaxContentRunes)
		} else {
			e.stats.ContentMissing.Add(1)
		}
	}

	date := parser.ExtractDate(c.Title+"\n"+c.Snippet+"\n"+content, e.window)
	if date == "" {
		date = e.window.Fallback()
	}

	return &types.NewsRecord{
		Title:   c.Title,
		Date:    date,
		URL:     c.URL,
		Content: content,
		Source:  c.Source,
	}, nil
}

func (e *Engine) keep(rec types.NewsRecord) {
	e.mu.Lock()
	e.records = append(e.records, rec)
	e.mu.Unlock()
	e.stats.addRecord(rec.Source)
	e.metrics.ObserveRecord(rec.Source)
}
