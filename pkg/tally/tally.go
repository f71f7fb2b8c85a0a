// Package tally aggregates classified fetch outcomes into per-status counts.
package tally

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/batch-fetch/pkg/fetch"
	"github.com/Sternrassler/batch-fetch/pkg/logging"
	"github.com/rs/zerolog"
)

// Tally maps each status to the number of identifiers that ended with it.
type Tally map[fetch.Status]int

// New returns a tally with every status present at zero.
func New() Tally {
	t := make(Tally, len(fetch.Statuses()))
	for _, s := range fetch.Statuses() {
		t[s] = 0
	}
	return t
}

// Get returns the count for status.
func (t Tally) Get(status fetch.Status) int {
	return t[status]
}

// Total returns the sum over all statuses.
func (t Tally) Total() int {
	total := 0
	for _, n := range t {
		total += n
	}
	return total
}

// ErrorRecord is the error detail recorded for one failed identifier.
type ErrorRecord struct {
	ID     fetch.Identifier
	Detail string
}

// Report is the finalized result of one pipeline run.
type Report struct {
	Tally   Tally
	Errors  []ErrorRecord
	Elapsed time.Duration
}

// Summary renders the final report: downloaded, not found, errors, elapsed.
func (r Report) Summary() string {
	var b strings.Builder
	ok := r.Tally.Get(fetch.StatusOK)
	fmt.Fprintf(&b, "%d flag%s downloaded.\n", ok, plural(ok))
	if n := r.Tally.Get(fetch.StatusNotFound); n > 0 {
		fmt.Fprintf(&b, "%d not found.\n", n)
	}
	if n := r.Tally.Get(fetch.StatusError); n > 0 {
		fmt.Fprintf(&b, "%d error%s.\n", n, plural(n))
	}
	fmt.Fprintf(&b, "Elapsed time: %.2fs", r.Elapsed.Seconds())
	return b.String()
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// Options configures an Aggregator.
type Options struct {
	// Verbose prints one line per identifier as soon as it is tallied.
	Verbose bool

	// Output receives verbose lines (default: io.Discard).
	Output io.Writer

	// Logger defaults to the global logger with component=tally.
	Logger *zerolog.Logger
}

// Aggregator counts outcomes. It is safe for concurrent use.
type Aggregator struct {
	mu        sync.Mutex
	tally     Tally
	errors    []ErrorRecord
	finalized bool
	verbose   bool
	out       io.Writer
	logger    zerolog.Logger
}

// NewAggregator creates an empty aggregator.
func NewAggregator(opts Options) *Aggregator {
	out := opts.Output
	if out == nil {
		out = io.Discard
	}
	logger := logging.NewLogger(logging.ComponentTally)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Aggregator{
		tally:   New(),
		verbose: opts.Verbose,
		out:     out,
		logger:  logger,
	}
}

// Add tallies one identifier. detail is the error message for StatusError and
// ignored otherwise. Calls after Finalize are dropped.
func (a *Aggregator) Add(id fetch.Identifier, status fetch.Status, detail string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		a.logger.Error().
			Str("id", string(id)).
			Str("status", string(status)).
			Msg("Tally already finalized, dropping completion")
		return
	}

	a.tally[status]++

	if status == fetch.StatusError {
		a.errors = append(a.errors, ErrorRecord{ID: id, Detail: detail})
	}

	if a.verbose {
		switch status {
		case fetch.StatusError:
			fmt.Fprintf(a.out, "*** Error for %s: %s\n", id, detail)
		case fetch.StatusNotFound:
			fmt.Fprintf(a.out, "%s not found\n", id)
		default:
			fmt.Fprintf(a.out, "%s OK\n", id)
		}
	}
}

// Snapshot returns a copy of the current counts.
func (a *Aggregator) Snapshot() Tally {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.copyTally()
}

// Finalize freezes the aggregator and returns the report.
func (a *Aggregator) Finalize(elapsed time.Duration) Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.finalized = true
	errs := make([]ErrorRecord, len(a.errors))
	copy(errs, a.errors)

	return Report{
		Tally:   a.copyTally(),
		Errors:  errs,
		Elapsed: elapsed,
	}
}

func (a *Aggregator) copyTally() Tally {
	t := make(Tally, len(a.tally))
	for k, v := range a.tally {
		t[k] = v
	}
	return t
}
