package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Sternrassler/batch-fetch/pkg/fetch"
)

const (
	// DefaultConcurrency is kept low to avoid errors from the remote site,
	// such as 503 Service Temporarily Unavailable.
	DefaultConcurrency = 5

	// MaxConcurrency is the hard ceiling for the admission budget.
	MaxConcurrency = 1000

	// DefaultExtension is appended to persisted payload names.
	DefaultExtension = ".gif"
)

// ErrInvalidConcurrency is returned for a concurrency budget below one.
var ErrInvalidConcurrency = errors.New("concurrency must be >= 1")

// Config holds orchestrator configuration.
type Config struct {
	// Concurrency is the maximum number of outstanding transport calls.
	Concurrency int

	// Verbose prints per-identifier lines instead of the progress line.
	Verbose bool

	// Output receives progress and verbose lines (default: os.Stderr).
	Output io.Writer

	// Timeout bounds each transport call. Zero means no per-call timeout.
	Timeout time.Duration

	// NameFunc maps an identifier to its persisted name
	// (default: lower-cased identifier plus DefaultExtension).
	NameFunc func(fetch.Identifier) string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency: DefaultConcurrency,
		Output:      os.Stderr,
		Timeout:     30 * time.Second,
		NameFunc:    DefaultName,
	}
}

// DefaultName returns the lower-cased identifier with DefaultExtension.
func DefaultName(id fetch.Identifier) string {
	return strings.ToLower(string(id)) + DefaultExtension
}

// ClampConcurrency rejects n < 1 and caps n at MaxConcurrency.
func ClampConcurrency(n int) (int, error) {
	if n < 1 {
		return 0, fmt.Errorf("%w (got %d)", ErrInvalidConcurrency, n)
	}
	if n > MaxConcurrency {
		return MaxConcurrency, nil
	}
	return n, nil
}
