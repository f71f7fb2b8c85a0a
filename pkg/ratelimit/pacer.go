// Package ratelimit paces outgoing requests with a token bucket shared by all
// callers of one transport.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request pacing.
var (
	waitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetch_rate_limit_waits_total",
		Help: "Total number of requests delayed by the pacer",
	})

	waitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fetch_rate_limit_wait_seconds",
		Help:    "Time spent waiting for a pacing token",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

// minRecordedWait filters out token grants that did not actually block.
const minRecordedWait = time.Millisecond

// Pacer limits the request rate. A nil *Pacer or one created with rps <= 0
// never blocks.
type Pacer struct {
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// New creates a pacer allowing rps requests per second with the given burst.
// burst < 1 is treated as 1.
func New(rps float64, burst int, logger zerolog.Logger) *Pacer {
	if burst < 1 {
		burst = 1
	}

	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}

	logger.Debug().
		Float64("rps", rps).
		Int("burst", burst).
		Msg("Request pacer configured")

	return &Pacer{
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Wait blocks until a request may proceed or ctx ends.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter.Limit() == rate.Inf {
		return nil
	}

	start := time.Now()
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if waited := time.Since(start); waited >= minRecordedWait {
		waitsTotal.Inc()
		waitSeconds.Observe(waited.Seconds())
		p.logger.Debug().Dur("waited", waited).Msg("Request paced")
	}
	return nil
}

// Allow reports whether a request may proceed now, consuming a token if so.
func (p *Pacer) Allow() bool {
	if p == nil {
		return true
	}
	return p.limiter.Allow()
}

// Limit returns the configured rate; rate.Inf means unlimited.
func (p *Pacer) Limit() rate.Limit {
	if p == nil {
		return rate.Inf
	}
	return p.limiter.Limit()
}

// Unlimited reports whether the pacer never blocks.
func (p *Pacer) Unlimited() bool {
	return p.Limit() == rate.Inf
}
