// Package testutil provides testing utilities for the batch fetcher.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// GIFHeader prefixes every payload served by FlagServer.
const GIFHeader = "GIF89a"

// MockResponse defines the behavior for a mock flag endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// FlagServer is a configurable mock flag server for testing.
// It serves /{cc}/{cc}.gif for every registered code and 404 otherwise.
type FlagServer struct {
	server   *httptest.Server
	mu       sync.RWMutex
	flags    map[string][]byte
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	delay    time.Duration

	requestCount  int
	inFlight      int
	peakInFlight  int
	lastUserAgent string
}

// NewFlagServer creates a mock server serving the given codes.
func NewFlagServer(codes ...string) *FlagServer {
	mock := &FlagServer{
		flags:    make(map[string][]byte),
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}
	for _, cc := range codes {
		mock.SetFlag(cc, FlagPayload(cc))
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.inFlight++
		if mock.inFlight > mock.peakInFlight {
			mock.peakInFlight = mock.inFlight
		}
		mock.lastUserAgent = r.UserAgent()
		delay := mock.delay
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		defer func() {
			mock.mu.Lock()
			mock.inFlight--
			mock.mu.Unlock()
		}()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		if exists {
			handler(w, r)
			return
		}
		mock.defaultHandler(w, r)
	}))

	return mock
}

// FlagPayload returns the body FlagServer serves for cc.
func FlagPayload(cc string) []byte {
	return []byte(GIFHeader + strings.ToLower(cc))
}

// URL returns the mock server URL.
func (m *FlagServer) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *FlagServer) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *FlagServer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.peakInFlight = 0
	m.lastUserAgent = ""
}

// SetFlag registers a flag payload for cc.
func (m *FlagServer) SetFlag(cc string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[strings.ToLower(cc)] = body
}

// SetDelay delays every response by d.
func (m *FlagServer) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetHandler sets a custom handler for a specific path.
func (m *FlagServer) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *FlagServer) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetFlagResponse configures the response for the flag of cc.
func (m *FlagServer) SetFlagResponse(cc string, resp MockResponse) {
	m.SetResponse(FlagPath(cc), resp)
}

// FlagPath returns the request path of the flag for cc.
func FlagPath(cc string) string {
	cc = strings.ToLower(cc)
	return fmt.Sprintf("/%s/%s.gif", cc, cc)
}

// RequestCount returns the number of requests made to the server.
func (m *FlagServer) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// PeakInFlight returns the highest number of concurrently served requests.
func (m *FlagServer) PeakInFlight() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.peakInFlight
}

// LastUserAgent returns the User-Agent of the most recent request.
func (m *FlagServer) LastUserAgent() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUserAgent
}

func (m *FlagServer) defaultHandler(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 2 || parts[1] != parts[0]+".gif" {
		http.NotFound(w, r)
		return
	}

	m.mu.RLock()
	body, ok := m.flags[parts[0]]
	m.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "image/gif")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// NewUnavailableResponse creates a 503 Service Unavailable response.
func NewUnavailableResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       "Service Temporarily Unavailable",
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       "Too Many Requests",
		Headers:    map[string]string{"Retry-After": "1"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       "Internal Server Error",
	}
}

// NewForbiddenResponse creates a 403 Forbidden response.
func NewForbiddenResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       "Forbidden",
	}
}
