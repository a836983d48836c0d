package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/NewsHarvest/internal/config"
	"github.com/IshaanNene/NewsHarvest/internal/observability"
	"github.com/IshaanNene/NewsHarvest/internal/types"
)

// BrowserClient renders pages in a headless Chromium driven by Rod. The
// browser is launched on first use, reused for the run, and torn down by
// Close.
type BrowserClient struct {
	cfg     config.BrowserConfig
	pacer   *Pacer
	metrics *observability.Metrics
	logger  *slog.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	startErr error
	closed   bool
}

// BrowserOption configures the BrowserClient.
type BrowserOption func(*BrowserClient)

// WithBrowserPacer sets the pacer used for the post-navigation settle wait.
func WithBrowserPacer(p *Pacer) BrowserOption {
	return func(b *BrowserClient) { b.pacer = p }
}

// WithBrowserMetrics records render outcomes.
func WithBrowserMetrics(m *observability.Metrics) BrowserOption {
	return func(b *BrowserClient) { b.metrics = m }
}

// NewBrowserClient creates a client without launching anything.
func NewBrowserClient(cfg *config.Config, logger *slog.Logger, opts ...BrowserOption) *BrowserClient {
	b := &BrowserClient{
		cfg:    cfg.Browser,
		pacer:  NewPacer(),
		logger: logger.With("component", "browser_client"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start launches Chromium once. A failed launch is remembered so callers
// degrade immediately on later calls.
func (b *BrowserClient) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.browser != nil:
		return nil
	case b.startErr != nil:
		return b.startErr
	case b.closed:
		return fmt.Errorf("%w: client closed", types.ErrBrowserUnavailable)
	}

	bin := b.cfg.Bin
	if bin == "" {
		path, ok := launcher.LookPath()
		if !ok {
			b.startErr = fmt.Errorf("%w: no chromium binary found", types.ErrBrowserUnavailable)
			return b.startErr
		}
		bin = path
	}

	l := launcher.New().
		Bin(bin).
		Headless(b.cfg.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	controlURL, err := l.Launch()
	if err != nil {
		b.startErr = fmt.Errorf("%w: launch: %v", types.ErrBrowserUnavailable, err)
		return b.startErr
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		b.startErr = fmt.Errorf("%w: connect: %v", types.ErrBrowserUnavailable, err)
		return b.startErr
	}

	b.launcher = l
	b.browser = browser
	b.logger.Info("browser started", "bin", bin, "headless", b.cfg.Headless)
	return nil
}

// Render navigates to rawURL in a fresh stealth page, waits for the load
// event plus a randomized settle interval, and returns the document HTML.
// Navigation is bounded by the page timeout and is not cut short by ctx;
// ctx only interrupts the settle wait.
func (b *BrowserClient) Render(ctx context.Context, rawURL string) (*types.Response, error) {
	if err := b.Start(); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := b.render(ctx, rawURL)
	if err != nil {
		b.metrics.ObserveRender("failed")
		b.logger.Warn("render failed", "url", rawURL, "error", err)
		return nil, &types.FetchFailure{URL: rawURL, Class: types.FailureRender, Attempts: 1, Err: err}
	}
	if marker, ok := DetectChallenge(resp.FinalURL, resp.Body); ok {
		b.metrics.ObserveRender("challenge")
		b.logger.Warn("render hit verification page", "url", rawURL, "marker", marker)
		return nil, &types.FetchFailure{
			URL:      rawURL,
			Class:    types.FailureBlocked,
			Attempts: 1,
			Err:      fmt.Errorf("%w (%s)", types.ErrChallenge, marker),
		}
	}
	b.metrics.ObserveRender("ok")
	resp.FetchDuration = time.Since(start)

	b.logger.Debug("render complete",
		"url", rawURL,
		"final_url", resp.FinalURL,
		"size", len(resp.Body),
		"duration", resp.FetchDuration,
	)
	return resp, nil
}

func (b *BrowserClient) render(ctx context.Context, rawURL string) (*types.Response, error) {
	b.mu.Lock()
	browser := b.browser
	b.mu.Unlock()
	if browser == nil {
		return nil, types.ErrBrowserUnavailable
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("stealth page: %w", err)
	}
	defer page.Close()

	nav := page.Context(context.WithoutCancel(ctx)).Timeout(b.cfg.PageTimeout)
	if err := nav.Navigate(rawURL); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := nav.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	if err := b.pacer.Pause(ctx, b.cfg.Settle); err != nil {
		return nil, err
	}

	html, err := page.Timeout(b.cfg.PageTimeout).HTML()
	if err != nil {
		return nil, fmt.Errorf("read html: %w", err)
	}

	finalURL := rawURL
	if info, err := page.Info(); err == nil && info != nil {
		finalURL = info.URL
	}
	return types.NewRenderedResponse(finalURL, html, 0), nil
}

// Close shuts down the browser and kills the launched process.
func (b *BrowserClient) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	if b.browser == nil {
		return nil
	}

	err := b.browser.Close()
	b.browser = nil
	b.launcher.Kill()
	b.launcher.Cleanup()
	b.launcher = nil
	b.logger.Info("browser stopped", "error", err)
	return err
}
