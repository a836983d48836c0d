package fetcher

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/NewsHarvest/internal/config"
	"github.com/IshaanNene/NewsHarvest/internal/observability"
)

// Pacer blocks for randomized intervals between network calls.
type Pacer struct {
	slept   atomic.Int64
	sleep   func(ctx context.Context, d time.Duration) error
	metrics *observability.Metrics
}

// NewPacer creates a Pacer backed by real timers.
func NewPacer() *Pacer {
	return &Pacer{sleep: sleepContext}
}

// SetMetrics reports every pause to m.
func (p *Pacer) SetMetrics(m *observability.Metrics) {
	p.metrics = m
}

// Duration draws a uniform random delay in [d.Min, d.Max].
func (p *Pacer) Duration(d config.DelayRange) time.Duration {
	if d.Max <= d.Min {
		return d.Min
	}
	return d.Min + time.Duration(rand.Int64N(int64(d.Max-d.Min)+1))
}

// Pause sleeps for a random delay drawn from d. It returns early with the
// context's error when ctx is cancelled.
func (p *Pacer) Pause(ctx context.Context, d config.DelayRange) error {
	delay := p.Duration(d)
	if delay <= 0 {
		return ctx.Err()
	}
	p.slept.Add(int64(delay))
	p.metrics.ObservePause(delay)
	return p.sleep(ctx, delay)
}

// Slept returns the total time spent pausing.
func (p *Pacer) Slept() time.Duration {
	return time.Duration(p.slept.Load())
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
