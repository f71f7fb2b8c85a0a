package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/batch-fetch/pkg/fetch"
	"github.com/Sternrassler/batch-fetch/pkg/gate"
	"github.com/Sternrassler/batch-fetch/pkg/logging"
	"github.com/Sternrassler/batch-fetch/pkg/progress"
	"github.com/Sternrassler/batch-fetch/pkg/tally"
	"github.com/rs/zerolog"
)

// Completion is the result of one task, published in completion order.
type Completion struct {
	ID       fetch.Identifier
	Outcome  fetch.Outcome
	Status   fetch.Status
	Duration time.Duration
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// Orchestrator runs batch fetches with a fixed concurrency budget.
// Runs on one orchestrator share its gate and should not overlap.
type Orchestrator struct {
	transport fetch.Transport
	saver     fetch.Saver
	config    Config
	gate      *gate.Gate
	logger    zerolog.Logger
	state     atomic.Int32
}

var discard = fetch.SaverFunc(func(context.Context, []byte, string) error { return nil })

// New creates an orchestrator. A nil saver discards payloads.
func New(transport fetch.Transport, saver fetch.Saver, cfg Config, opts ...Option) (*Orchestrator, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}

	o := &Orchestrator{
		transport: transport,
		saver:     saver,
		logger:    logging.NewLogger(logging.ComponentPipeline),
	}
	for _, opt := range opts {
		opt(o)
	}

	n, err := ClampConcurrency(cfg.Concurrency)
	if err != nil {
		return nil, err
	}
	if n != cfg.Concurrency {
		o.logger.Warn().
			Int("requested", cfg.Concurrency).
			Int("max", MaxConcurrency).
			Msg("Concurrency clamped to maximum")
	}
	cfg.Concurrency = n

	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.NameFunc == nil {
		cfg.NameFunc = DefaultName
	}
	if o.saver == nil {
		o.saver = discard
	}

	g, err := gate.New(n)
	if err != nil {
		return nil, err
	}

	o.config = cfg
	o.gate = g
	return o, nil
}

// Gate returns the admission gate, for introspection.
func (o *Orchestrator) Gate() *gate.Gate {
	return o.gate
}

// Concurrency returns the effective budget.
func (o *Orchestrator) Concurrency() int {
	return o.config.Concurrency
}

// State returns the current lifecycle phase.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	prev := State(o.state.Swap(int32(s)))
	o.logger.Debug().
		Str("from", prev.String()).
		Str("to", s.String()).
		Msg("Pipeline state changed")
}

// Stream fetches every identifier and yields completions as they finish.
// The channel closes once every admitted task has completed. Callers must
// drain the channel or cancel ctx.
func (o *Orchestrator) Stream(ctx context.Context, ids []fetch.Identifier) <-chan Completion {
	out := make(chan Completion, o.config.Concurrency)
	o.setState(StateRunning)
	go o.dispatch(ctx, ids, out)
	return out
}

// dispatch admits tasks in submission order and closes out when all are done.
func (o *Orchestrator) dispatch(ctx context.Context, ids []fetch.Identifier, out chan<- Completion) {
	var wg sync.WaitGroup
	defer func() {
		wg.Wait()
		close(out)
	}()

	for i, id := range ids {
		release, err := o.gate.Acquire(ctx)
		if err != nil {
			o.logger.Debug().
				Err(err).
				Int("admitted", i).
				Int("total", len(ids)).
				Msg("Dispatch stopped (context cancelled)")
			break
		}

		wg.Add(1)
		go func(id fetch.Identifier) {
			defer wg.Done()

			c, ok := o.process(ctx, id, release)
			if !ok {
				return
			}

			select {
			case out <- c:
			case <-ctx.Done():
			}
		}(id)
	}

	o.setState(StateDraining)
}

// process runs one task. It reports false when ctx ended, in which case the
// task contributes nothing.
func (o *Orchestrator) process(ctx context.Context, id fetch.Identifier, release func()) (Completion, bool) {
	start := time.Now()

	outcome := o.call(ctx, id, release)
	if ctx.Err() != nil {
		o.logger.Debug().Str("id", string(id)).Msg("Task cancelled, discarding outcome")
		return Completion{}, false
	}

	if outcome.IsOK() {
		name := o.config.NameFunc(id)
		if err := o.save(ctx, outcome.Payload(), name); err != nil {
			o.logger.Warn().
				Err(err).
				Str("id", string(id)).
				Str("name", name).
				Msg("Failed to persist payload")
			outcome = fetch.Failed(id, &fetch.SaveError{Name: name, Err: err})
		}
		if ctx.Err() != nil {
			return Completion{}, false
		}
	}

	status := fetch.Classify(outcome)
	elapsed := time.Since(start)

	completionsTotal.WithLabelValues(string(status)).Inc()
	taskDuration.Observe(elapsed.Seconds())

	o.logger.Debug().
		Str("id", string(id)).
		Str("status", string(status)).
		Dur("duration", elapsed).
		Msg("Task completed")

	return Completion{
		ID:       id,
		Outcome:  outcome,
		Status:   status,
		Duration: elapsed,
	}, true
}

// call invokes the transport while the slot is held. release runs on every
// exit path, panics included.
func (o *Orchestrator) call(ctx context.Context, id fetch.Identifier, release func()) (outcome fetch.Outcome) {
	defer release()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().
				Str("id", string(id)).
				Interface("panic", r).
				Msg("Transport panicked")
			outcome = fetch.Failed(id, fmt.Errorf("transport panic: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return fetch.Failed(id, err)
	}

	callCtx := ctx
	if o.config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.config.Timeout)
		defer cancel()
	}

	data, err := o.transport.Fetch(callCtx, id)
	switch {
	case err == nil:
		return fetch.Ok(data)
	case errors.Is(err, fetch.ErrNotFound):
		return fetch.NotFound()
	default:
		return fetch.Failed(id, err)
	}
}

// save persists outside the gate and turns a panicking saver into an error.
func (o *Orchestrator) save(ctx context.Context, payload []byte, name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("saver panic: %v", r)
		}
	}()
	return o.saver.Save(ctx, payload, name)
}

// Run fetches every identifier and returns the finalized report. Individual
// task failures are counted, never returned; the error is non-nil only when
// ctx ended before the run completed.
func (o *Orchestrator) Run(ctx context.Context, ids []fetch.Identifier) (tally.Report, error) {
	start := time.Now()
	runsTotal.Inc()

	o.logger.Info().
		Int("total", len(ids)).
		Int("concurrency", o.config.Concurrency).
		Bool("verbose", o.config.Verbose).
		Msg("Starting batch fetch")

	agg := tally.NewAggregator(tally.Options{
		Verbose: o.config.Verbose,
		Output:  o.config.Output,
		Logger:  &o.logger,
	})

	stream := o.Stream(ctx, ids)
	if !o.config.Verbose {
		stream = progress.Track(progress.New(o.config.Output, len(ids)), stream)
	}

	for c := range stream {
		agg.Add(c.ID, c.Status, c.Outcome.Detail())
	}

	o.setState(StateDone)
	elapsed := time.Since(start)
	runDuration.Observe(elapsed.Seconds())
	report := agg.Finalize(elapsed)

	if err := ctx.Err(); err != nil {
		o.logger.Warn().
			Err(err).
			Int("completed", report.Tally.Total()).
			Int("total", len(ids)).
			Msg("Batch fetch cancelled - returning partial tally")
		return report, err
	}

	o.logger.Info().
		Int("ok", report.Tally.Get(fetch.StatusOK)).
		Int("not_found", report.Tally.Get(fetch.StatusNotFound)).
		Int("error", report.Tally.Get(fetch.StatusError)).
		Dur("duration", elapsed).
		Msg("Batch fetch complete")

	return report, nil
}

// Run is the caller-facing entry point: it validates the budget, fetches ids
// and returns the tally. A budget below one is rejected before any transport
// call.
func Run(ctx context.Context, transport fetch.Transport, saver fetch.Saver, ids []fetch.Identifier, concurrency int, verbose bool) (tally.Report, error) {
	cfg := DefaultConfig()
	cfg.Concurrency = concurrency
	cfg.Verbose = verbose

	o, err := New(transport, saver, cfg)
	if err != nil {
		return tally.Report{Tally: tally.New()}, err
	}
	return o.Run(ctx, ids)
}
