package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/batch-fetch/internal/testutil"
	"github.com/Sternrassler/batch-fetch/pkg/fetch"
)

const testUserAgent = "flags-fetch-test/1.0"

func newTestClient(t *testing.T, baseURL string, mutate func(*Config)) *Client {
	t.Helper()

	cfg := DefaultConfig(baseURL, testUserAgent)
	cfg.InitialBackoff = 5 * time.Millisecond
	cfg.MaxBackoff = 20 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig("http://localhost:8001/flags", testUserAgent),
			expectError: false,
		},
		{
			name:        "empty base url",
			config:      DefaultConfig("", testUserAgent),
			expectError: true,
			errorMsg:    "base url is required",
		},
		{
			name:        "unsupported scheme",
			config:      DefaultConfig("ftp://example.com/flags", testUserAgent),
			expectError: true,
			errorMsg:    `base url must be http or https (got "ftp://example.com/flags")`,
		},
		{
			name:        "empty user agent",
			config:      DefaultConfig("http://localhost:8001/flags", ""),
			expectError: true,
			errorMsg:    "user-agent is required",
		},
		{
			name: "zero attempts",
			config: func() Config {
				c := DefaultConfig("http://localhost:8001/flags", testUserAgent)
				c.MaxAttempts = 0
				return c
			}(),
			expectError: true,
			errorMsg:    "max_attempts must be >= 1 (got 0)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}

			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if client == nil {
				t.Error("Expected client but got nil")
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("http://flupy.org/data/flags", testUserAgent)

	if cfg.BaseURL != "http://flupy.org/data/flags" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.UserAgent != testUserAgent {
		t.Errorf("UserAgent = %q", cfg.UserAgent)
	}
	if cfg.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", cfg.MaxAttempts)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.Extension != ".gif" {
		t.Errorf("Extension = %q, want .gif", cfg.Extension)
	}
	if cfg.RateLimit != 0 {
		t.Errorf("RateLimit = %v, want 0 (unlimited)", cfg.RateLimit)
	}
}

func TestURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		ext     string
		id      fetch.Identifier
		want    string
	}{
		{name: "lower-cases code", baseURL: "http://flupy.org/data/flags", id: "CN", want: "http://flupy.org/data/flags/cn/cn.gif"},
		{name: "trailing slash", baseURL: "http://localhost:8001/flags/", id: "br", want: "http://localhost:8001/flags/br/br.gif"},
		{name: "custom extension", baseURL: "http://localhost:8001/flags", ext: ".png", id: "US", want: "http://localhost:8001/flags/us/us.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.baseURL, func(cfg *Config) {
				if tt.ext != "" {
					cfg.Extension = tt.ext
				}
			})
			if got := c.URL(tt.id); got != tt.want {
				t.Errorf("URL(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	c := newTestClient(t, "http://localhost", nil)

	tests := []struct {
		name     string
		status   int
		err      error
		expected ErrorClass
	}{
		{name: "network error", err: errors.New("dial tcp: refused"), expected: ErrorClassNetwork},
		{name: "429 rate limit", status: 429, expected: ErrorClassRateLimit},
		{name: "400 client", status: 400, expected: ErrorClassClient},
		{name: "403 client", status: 403, expected: ErrorClassClient},
		{name: "500 server", status: 500, expected: ErrorClassServer},
		{name: "503 server", status: 503, expected: ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp *http.Response
			if tt.err == nil {
				resp = &http.Response{StatusCode: tt.status}
			}
			if got := c.classifyError(resp, tt.err); got != tt.expected {
				t.Errorf("classifyError() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFetch_Success(t *testing.T) {
	server := testutil.NewFlagServer("CN", "BR")
	defer server.Close()

	c := newTestClient(t, server.URL(), nil)

	data, err := c.Fetch(context.Background(), "CN")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !bytes.Equal(data, testutil.FlagPayload("cn")) {
		t.Errorf("Fetch() = %q, want %q", data, testutil.FlagPayload("cn"))
	}
	if server.LastUserAgent() != testUserAgent {
		t.Errorf("User-Agent = %q, want %q", server.LastUserAgent(), testUserAgent)
	}
}

func TestFetch_NotFound(t *testing.T) {
	server := testutil.NewFlagServer("CN")
	defer server.Close()

	c := newTestClient(t, server.URL(), func(cfg *Config) { cfg.MaxAttempts = 3 })

	_, err := c.Fetch(context.Background(), "QQ")
	if !errors.Is(err, fetch.ErrNotFound) {
		t.Fatalf("Fetch() error = %v, want fetch.ErrNotFound", err)
	}
	if server.RequestCount() != 1 {
		t.Errorf("RequestCount = %d, want 1 (404 is never retried)", server.RequestCount())
	}
}

func TestFetch_ErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		resp     testutil.MockResponse
		wantMsg  string
		wantCode int
		class    ErrorClass
	}{
		{name: "503", resp: testutil.NewUnavailableResponse(), wantMsg: "HTTP 503 - Service Unavailable", wantCode: 503, class: ErrorClassServer},
		{name: "500", resp: testutil.NewServerErrorResponse(), wantMsg: "HTTP 500 - Internal Server Error", wantCode: 500, class: ErrorClassServer},
		{name: "429", resp: testutil.NewRateLimitResponse(), wantMsg: "HTTP 429 - Too Many Requests", wantCode: 429, class: ErrorClassRateLimit},
		{name: "403", resp: testutil.NewForbiddenResponse(), wantMsg: "HTTP 403 - Forbidden", wantCode: 403, class: ErrorClassClient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := testutil.NewFlagServer("CN")
			defer server.Close()
			server.SetFlagResponse("CN", tt.resp)

			c := newTestClient(t, server.URL(), nil)

			_, err := c.Fetch(context.Background(), "CN")
			if err == nil {
				t.Fatal("Fetch() error = nil")
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.wantMsg)
			}

			var httpErr *HTTPError
			if !errors.As(err, &httpErr) {
				t.Fatalf("error %T is not *HTTPError", err)
			}
			if httpErr.StatusCode != tt.wantCode {
				t.Errorf("StatusCode = %d, want %d", httpErr.StatusCode, tt.wantCode)
			}
			if httpErr.ErrorClass != tt.class {
				t.Errorf("ErrorClass = %q, want %q", httpErr.ErrorClass, tt.class)
			}
		})
	}
}

func TestFetch_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := newTestClient(t, url, nil)

	_, err := c.Fetch(context.Background(), "CN")
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("error = %v, want *HTTPError", err)
	}
	if httpErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %q, want network", httpErr.ErrorClass)
	}
	if strings.Contains(err.Error(), `Get "`) {
		t.Errorf("Error() = %q, should report the cause, not the url.Error envelope", err.Error())
	}
}

func TestFetch_RetryOnServerError(t *testing.T) {
	server := testutil.NewFlagServer("CN")
	defer server.Close()

	var calls atomic.Int32
	server.SetHandler(testutil.FlagPath("CN"), func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(testutil.FlagPayload("cn"))
	})

	c := newTestClient(t, server.URL(), func(cfg *Config) { cfg.MaxAttempts = 3 })

	data, err := c.Fetch(context.Background(), "CN")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !bytes.Equal(data, testutil.FlagPayload("cn")) {
		t.Errorf("Fetch() = %q", data)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestFetch_NoRetryOnClientError(t *testing.T) {
	server := testutil.NewFlagServer("CN")
	defer server.Close()
	server.SetFlagResponse("CN", testutil.NewForbiddenResponse())

	c := newTestClient(t, server.URL(), func(cfg *Config) { cfg.MaxAttempts = 3 })

	_, err := c.Fetch(context.Background(), "CN")
	if err == nil {
		t.Fatal("Fetch() error = nil")
	}
	if server.RequestCount() != 1 {
		t.Errorf("RequestCount = %d, want 1", server.RequestCount())
	}
}

func TestFetch_RetryOnRateLimit(t *testing.T) {
	server := testutil.NewFlagServer("CN")
	defer server.Close()

	var calls atomic.Int32
	server.SetHandler(testutil.FlagPath("CN"), func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(testutil.FlagPayload("cn"))
	})

	c := newTestClient(t, server.URL(), func(cfg *Config) { cfg.MaxAttempts = 2 })

	if _, err := c.Fetch(context.Background(), "CN"); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestFetch_RetryExhausted(t *testing.T) {
	server := testutil.NewFlagServer("CN")
	defer server.Close()
	server.SetFlagResponse("CN", testutil.NewUnavailableResponse())

	c := newTestClient(t, server.URL(), func(cfg *Config) { cfg.MaxAttempts = 3 })

	_, err := c.Fetch(context.Background(), "CN")
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("Fetch() error = %v, want ErrRetryExhausted", err)
	}
	if server.RequestCount() != 3 {
		t.Errorf("RequestCount = %d, want 3", server.RequestCount())
	}
}

func TestFetch_ContextTimeout(t *testing.T) {
	server := testutil.NewFlagServer("CN")
	defer server.Close()
	server.SetDelay(time.Second)

	c := newTestClient(t, server.URL(), func(cfg *Config) { cfg.MaxAttempts = 3 })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Fetch(ctx, "CN")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Fetch() error = %v, want context.DeadlineExceeded", err)
	}
	if errors.Is(err, ErrContextCancelled) {
		t.Errorf("Fetch() error = %v, an expired deadline is not a cancellation", err)
	}
	if err.Error() != "context deadline exceeded" {
		t.Errorf("Error() = %q, want %q", err.Error(), "context deadline exceeded")
	}
}

func TestFetch_ContextCancelled(t *testing.T) {
	server := testutil.NewFlagServer("CN")
	defer server.Close()
	server.SetDelay(time.Second)

	c := newTestClient(t, server.URL(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Fetch(ctx, "CN")
	if !errors.Is(err, ErrContextCancelled) {
		t.Fatalf("Fetch() error = %v, want ErrContextCancelled", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch() error = %v, want context.Canceled in chain", err)
	}
}

// countingTransport counts round trips before delegating.
type countingTransport struct {
	next  http.RoundTripper
	count atomic.Int32
}

func (ct *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ct.count.Add(1)
	return ct.next.RoundTrip(req)
}

func TestSetHTTPClient(t *testing.T) {
	server := testutil.NewFlagServer("CN")
	defer server.Close()
	server.SetFlagResponse("CN", testutil.NewUnavailableResponse())

	c := newTestClient(t, server.URL(), func(cfg *Config) { cfg.MaxAttempts = 3 })
	rt := &countingTransport{next: http.DefaultTransport}
	c.SetHTTPClient(&http.Client{Transport: rt, Timeout: time.Second})

	_, err := c.Fetch(context.Background(), "CN")
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("Fetch() error = %v, want ErrRetryExhausted", err)
	}
	if rt.count.Load() != 3 {
		t.Errorf("round trips = %d, want 3 (one per attempt)", rt.count.Load())
	}
}

func TestFetch_Paced(t *testing.T) {
	server := testutil.NewFlagServer("CN")
	defer server.Close()

	c := newTestClient(t, server.URL(), func(cfg *Config) {
		cfg.RateLimit = 50
		cfg.RateBurst = 1
	})
	if c.Pacer().Unlimited() {
		t.Fatal("pacer should be limited")
	}

	start := time.Now()
	for i := 0; i < 4; i++ {
		if _, err := c.Fetch(context.Background(), "CN"); err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("four paced requests took %v, want >= 50ms", elapsed)
	}
}

func TestFetch_ImplementsTransport(t *testing.T) {
	var _ fetch.Transport = (*Client)(nil)
}
