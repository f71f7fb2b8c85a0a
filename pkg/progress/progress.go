// Package progress renders "K of TOTAL done" while a completion stream drains.
package progress

import (
	"fmt"
	"io"
	"sync"
)

// Reporter counts completions and redraws a single progress line.
type Reporter struct {
	mu    sync.Mutex
	out   io.Writer
	total int
	count int
	done  bool
}

// New creates a reporter for total expected completions. A nil writer
// discards output.
func New(out io.Writer, total int) *Reporter {
	if out == nil {
		out = io.Discard
	}
	return &Reporter{out: out, total: total}
}

// Tick records one completion and redraws the line.
func (r *Reporter) Tick() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return
	}
	r.count++
	fmt.Fprintf(r.out, "\r%d of %d done", r.count, r.total)
}

// Done terminates the progress line. Further ticks are ignored.
func (r *Reporter) Done() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return
	}
	r.done = true
	if r.count > 0 {
		fmt.Fprintln(r.out)
	}
}

// Count returns the number of completions seen so far.
func (r *Reporter) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Total returns the expected number of completions.
func (r *Reporter) Total() int {
	return r.total
}

// Track forwards every element of in, unchanged and in order, ticking r after
// each one. The returned channel closes when in closes.
func Track[T any](r *Reporter, in <-chan T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		defer r.Done()
		for v := range in {
			out <- v
			r.Tick()
		}
	}()
	return out
}
