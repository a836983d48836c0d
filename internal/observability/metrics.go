package observability

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "newsharvest"

// Metrics tracks crawl counters on a private Prometheus registry.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	registry   *prometheus.Registry
	fetches    *prometheus.CounterVec
	renders    *prometheus.CounterVec
	candidates *prometheus.CounterVec
	records    *prometheus.CounterVec
	pauses     prometheus.Counter
	logger     *slog.Logger
}

// NewMetrics creates and registers the crawl collectors.
func NewMetrics(logger *slog.Logger) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "HTTP fetch attempts by outcome.",
		}, []string{"outcome"}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_attempts_total",
			Help:      "Browser renders by outcome.",
		}, []string{"outcome"}),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Candidates seen by source and verdict.",
		}, []string{"source", "verdict"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records appended by source.",
		}, []string{"source"}),
		pauses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pause_seconds_total",
			Help:      "Time spent in pacing pauses.",
		}),
		logger: logger.With("component", "metrics"),
	}

	m.registry.MustRegister(
		m.fetches,
		m.renders,
		m.candidates,
		m.records,
		m.pauses,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveFetch counts one HTTP attempt.
func (m *Metrics) ObserveFetch(outcome string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(outcome).Inc()
}

// ObserveRender counts one browser render.
func (m *Metrics) ObserveRender(outcome string) {
	if m == nil {
		return
	}
	m.renders.WithLabelValues(outcome).Inc()
}

// ObserveCandidate counts one candidate verdict.
func (m *Metrics) ObserveCandidate(source, verdict string) {
	if m == nil {
		return
	}
	m.candidates.WithLabelValues(source, verdict).Inc()
}

// ObserveRecord counts one appended record.
func (m *Metrics) ObserveRecord(source string) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(source).Inc()
}

// ObservePause adds d to the pacing total.
func (m *Metrics) ObservePause(d time.Duration) {
	if m == nil {
		return
	}
	m.pauses.Add(d.Seconds())
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer starts the metrics HTTP server. The caller shuts it down.
func (m *Metrics) StartServer(port int, path string) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	m.logger.Info("metrics server starting", "addr", ln.Addr().String(), "path", path)

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return srv, nil
}
