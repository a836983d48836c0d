package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"

	"github.com/IshaanNene/NewsHarvest/internal/config"
	"github.com/IshaanNene/NewsHarvest/internal/observability"
	"github.com/IshaanNene/NewsHarvest/internal/types"
)

var errBodyTooLarge = errors.New("response body exceeds limit")

// HTTPClient fetches pages with rotating identity headers and bounded
// retries. Success is exactly HTTP 200.
type HTTPClient struct {
	client      *resty.Client
	identities  *IdentityPool
	pacer       *Pacer
	metrics     *observability.Metrics
	pacing      config.PacingConfig
	maxAttempts int
	logger      *slog.Logger
}

// HTTPOption configures the HTTPClient.
type HTTPOption func(*HTTPClient)

// WithPacer sets the pacer used for retry pauses.
func WithPacer(p *Pacer) HTTPOption {
	return func(c *HTTPClient) { c.pacer = p }
}

// WithMetrics records attempts and failures.
func WithMetrics(m *observability.Metrics) HTTPOption {
	return func(c *HTTPClient) { c.metrics = m }
}

// NewHTTPClient creates a new HTTP client from the fetcher and pacing config.
func NewHTTPClient(cfg *config.Config, logger *slog.Logger, opts ...HTTPOption) (*HTTPClient, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	c := &HTTPClient{
		identities:  NewIdentityPool(cfg.Fetcher.UserAgents),
		pacer:       NewPacer(),
		pacing:      cfg.Pacing,
		maxAttempts: cfg.Fetcher.MaxAttempts,
		logger:      logger.With("component", "http_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}

	proxies, err := NewProxyPool(cfg.Fetcher.Proxies, cfg.Fetcher.ProxyRotation)
	if err != nil {
		return nil, err
	}
	if proxies.Len() > 0 {
		c.logger.Info("proxy rotation enabled", "count", proxies.Len(), "rotation", cfg.Fetcher.ProxyRotation)
	}

	transport := &decodingTransport{
		inner:   newBaseTransport(cfg.Fetcher.TLSInsecure, proxies.ProxyFunc()),
		maxBody: cfg.Fetcher.MaxBodySize,
	}

	c.client = resty.New().
		SetTransport(transport).
		SetCookieJar(jar).
		SetTimeout(cfg.Fetcher.Timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)).
		SetLogger(restyLogger{c.logger})

	return c, nil
}

// Fetch executes the request, retrying transient failures. The request
// itself is detached from ctx cancellation so an in-flight call always
// completes; ctx only interrupts the pauses between attempts.
func (c *HTTPClient) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	reqCtx := context.WithoutCancel(ctx)
	blockedOnce := false

	var failure *types.FetchFailure
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		var resp *types.Response
		resp, failure = c.attempt(reqCtx, req, attempt)
		if failure == nil {
			c.metrics.ObserveFetch("ok")
			return resp, nil
		}
		c.metrics.ObserveFetch(string(failure.Class))

		pause, retry := c.retryPlan(failure, &blockedOnce)
		if !retry || attempt == c.maxAttempts {
			break
		}

		c.logger.Debug("retrying fetch",
			"url", req.URL,
			"attempt", attempt,
			"class", failure.Class,
			"status", failure.StatusCode,
		)
		if err := c.pacer.Pause(ctx, pause); err != nil {
			break
		}
	}

	c.logger.Warn("fetch failed",
		"url", req.URL,
		"attempts", failure.Attempts,
		"class", failure.Class,
		"status", failure.StatusCode,
		"error", failure.Err,
	)
	return nil, failure
}

// retryPlan decides whether a failed attempt is worth repeating and how
// long to pause first. A 403 earns exactly one more try.
func (c *HTTPClient) retryPlan(f *types.FetchFailure, blockedOnce *bool) (config.DelayRange, bool) {
	switch f.Class {
	case types.FailureRateLimited:
		return c.pacing.RateLimited, true
	case types.FailureTimeout, types.FailureServer:
		return c.pacing.Retry, true
	case types.FailureConnection:
		return c.pacing.Retry, isRetryableError(f.Err)
	case types.FailureBlocked:
		if *blockedOnce {
			return config.DelayRange{}, false
		}
		*blockedOnce = true
		return c.pacing.Retry, true
	default:
		return config.DelayRange{}, false
	}
}

func (c *HTTPClient) attempt(ctx context.Context, req *types.Request, attempt int) (*types.Response, *types.FetchFailure) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	r := c.client.R().SetContext(ctx)
	for key, values := range c.identities.Pick() {
		r.SetHeader(key, values[0])
	}
	for key, values := range req.Headers {
		if len(values) > 0 {
			r.SetHeader(key, values[0])
		}
	}

	start := time.Now()
	resp, err := r.Execute(method, req.URL)
	duration := time.Since(start)

	if err != nil {
		return nil, &types.FetchFailure{
			URL:      req.URL,
			Class:    classifyError(err),
			Attempts: attempt,
			Err:      err,
		}
	}

	status := resp.StatusCode()
	if status != http.StatusOK {
		return nil, &types.FetchFailure{
			URL:        req.URL,
			StatusCode: status,
			Class:      classifyStatus(status),
			Attempts:   attempt,
			Err:        fmt.Errorf("HTTP %d", status),
		}
	}

	body, err := decodeBody(resp.Body(), resp.Header().Get("Content-Type"), req.Encoding)
	if err != nil {
		return nil, &types.FetchFailure{
			URL:        req.URL,
			StatusCode: status,
			Class:      types.FailureStatus,
			Attempts:   attempt,
			Err:        fmt.Errorf("decode body: %w", err),
		}
	}

	finalURL := req.URL
	if resp.RawResponse != nil && resp.RawResponse.Request != nil {
		finalURL = resp.RawResponse.Request.URL.String()
	}

	if marker, ok := DetectChallenge(finalURL, body); ok {
		return nil, &types.FetchFailure{
			URL:        req.URL,
			StatusCode: status,
			Class:      types.FailureBlocked,
			Attempts:   attempt,
			Err:        fmt.Errorf("%w (%s)", types.ErrChallenge, marker),
		}
	}

	c.logger.Debug("fetch complete",
		"url", req.URL,
		"status", status,
		"size", len(body),
		"duration", duration,
	)

	return &types.Response{
		StatusCode:    status,
		Headers:       resp.Header(),
		Body:          body,
		FinalURL:      finalURL,
		Attempts:      attempt,
		FetchDuration: duration,
		FetchedAt:     time.Now(),
	}, nil
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.client.GetClient().CloseIdleConnections()
	return nil
}

// decodeBody converts body to UTF-8. An explicit label wins over the
// Content-Type header and <meta> sniffing.
func decodeBody(body []byte, contentType, label string) (string, error) {
	var (
		r   io.Reader
		err error
	)
	if label != "" {
		r, err = charset.NewReaderLabel(label, bytes.NewReader(body))
	} else {
		r, err = charset.NewReader(bytes.NewReader(body), contentType)
	}
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func classifyStatus(status int) types.FailureClass {
	switch {
	case status == http.StatusTooManyRequests:
		return types.FailureRateLimited
	case status == http.StatusForbidden:
		return types.FailureBlocked
	case status >= 500:
		return types.FailureServer
	default:
		return types.FailureStatus
	}
}

func classifyError(err error) types.FailureClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return types.FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.FailureTimeout
	}
	return types.FailureConnection
}

// isRetryableError checks if a connection-level error warrants a retry.
// Covers connection resets, refused connections, DNS failures and
// unexpected EOF.
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, errBodyTooLarge) {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// restyLogger routes resty's own diagnostics into slog.
type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.logger.Debug("resty", "msg", fmt.Sprintf(format, v...))
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.logger.Debug("resty", "msg", fmt.Sprintf(format, v...))
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug("resty", "msg", fmt.Sprintf(format, v...))
}
