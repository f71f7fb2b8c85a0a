// Package gate bounds the number of concurrently outstanding transport calls.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/semaphore"
)

// ErrInvalidSize is returned when a gate is created with fewer than one slot.
var ErrInvalidSize = errors.New("gate size must be >= 1")

// Prometheus metrics for admission control.
var (
	gateInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fetch_gate_in_use",
		Help: "Number of admission slots currently held",
	})

	gateWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fetch_gate_wait_seconds",
		Help:    "Time spent waiting for an admission slot",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	gateAcquireCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetch_gate_acquire_cancelled_total",
		Help: "Total number of acquisitions abandoned because the context ended",
	})
)

// Gate is a counting semaphore with introspection. Waiters are admitted in
// arrival order, so no waiter is starved.
type Gate struct {
	sem     *semaphore.Weighted
	size    int64
	inUse   atomic.Int64
	peak    atomic.Int64
	waiting atomic.Int64
}

// New creates a gate with size slots.
func New(size int) (*Gate, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidSize, size)
	}
	return &Gate{
		sem:  semaphore.NewWeighted(int64(size)),
		size: int64(size),
	}, nil
}

// Acquire blocks until a slot is free or ctx is done. The returned release
// function frees the slot; calling it more than once is a no-op.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	start := time.Now()
	g.waiting.Add(1)
	err := g.sem.Acquire(ctx, 1)
	g.waiting.Add(-1)
	if err != nil {
		gateAcquireCancelledTotal.Inc()
		return nil, err
	}
	gateWaitSeconds.Observe(time.Since(start).Seconds())

	n := g.inUse.Add(1)
	gateInUse.Inc()
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}

	var once sync.Once
	return func() {
		once.Do(g.release)
	}, nil
}

func (g *Gate) release() {
	g.inUse.Add(-1)
	gateInUse.Dec()
	g.sem.Release(1)
}

// Do runs fn while holding a slot. The slot is released even if fn panics.
func (g *Gate) Do(ctx context.Context, fn func() error) error {
	release, err := g.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	return fn()
}

// Size returns the total number of slots.
func (g *Gate) Size() int {
	return int(g.size)
}

// InUse returns the number of slots currently held.
func (g *Gate) InUse() int {
	return int(g.inUse.Load())
}

// Available returns the number of free slots.
func (g *Gate) Available() int {
	return int(g.size - g.inUse.Load())
}

// Peak returns the highest number of slots ever held at once.
func (g *Gate) Peak() int {
	return int(g.peak.Load())
}

// Waiting returns the number of callers blocked in Acquire.
func (g *Gate) Waiting() int {
	return int(g.waiting.Load())
}
