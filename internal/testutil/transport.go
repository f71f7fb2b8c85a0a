package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/batch-fetch/pkg/fetch"
)

// FakeTransport is an in-memory fetch.Transport that records calls and the
// highest number of concurrent calls.
type FakeTransport struct {
	// Handler decides the result for id. Nil returns FlagPayload(id).
	Handler func(ctx context.Context, id fetch.Identifier) ([]byte, error)

	// Delay is applied before Handler, honoring ctx.
	Delay time.Duration

	mu       sync.Mutex
	calls    []fetch.Identifier
	inFlight int
	peak     int
}

// Fetch implements fetch.Transport.
func (f *FakeTransport) Fetch(ctx context.Context, id fetch.Identifier) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if f.Handler != nil {
		return f.Handler(ctx, id)
	}
	return FlagPayload(string(id)), nil
}

// Calls returns the identifiers fetched so far, in call order.
func (f *FakeTransport) Calls() []fetch.Identifier {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]fetch.Identifier, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns the number of Fetch calls.
func (f *FakeTransport) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Peak returns the highest number of concurrent Fetch calls observed.
func (f *FakeTransport) Peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

// InFlight returns the number of Fetch calls currently running.
func (f *FakeTransport) InFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}
