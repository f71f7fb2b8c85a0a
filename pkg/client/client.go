// Package client provides the HTTP flag transport with request pacing,
// retries and error classification.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/batch-fetch/pkg/fetch"
	"github.com/Sternrassler/batch-fetch/pkg/logging"
	"github.com/Sternrassler/batch-fetch/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for flag requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_http_requests_total",
		Help: "Total flag requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fetch_http_request_duration_seconds",
		Help:    "Flag request duration in seconds, retries included",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_http_errors_total",
		Help: "Total flag request errors by class",
	}, []string{"class"})
)

// Client fetches flag images over HTTP. It implements fetch.Transport.
type Client struct {
	httpClient *http.Client
	pacer      *ratelimit.Pacer
	baseURL    string
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the flag server root, e.g. "http://flupy.org/data/flags".
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout bounds one HTTP attempt.
	Timeout time.Duration

	// Retry
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Pacing: requests per second shared by all callers. Zero disables pacing.
	RateLimit float64
	RateBurst int

	// Extension of the flag resource (default ".gif").
	Extension string
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, userAgent string) Config {
	retry := DefaultRetryConfig()
	return Config{
		BaseURL:        baseURL,
		UserAgent:      userAgent,
		Timeout:        30 * time.Second,
		MaxAttempts:    retry.MaxAttempts,
		InitialBackoff: retry.InitialBackoff,
		MaxBackoff:     retry.MaxBackoff,
		RateLimit:      0,
		RateBurst:      1,
		Extension:      ".gif",
	}
}

// New creates a new flag client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("max_attempts must be >= 1 (got %d)", cfg.MaxAttempts)
	}

	if cfg.Extension == "" {
		cfg.Extension = ".gif"
	}

	logger := logging.NewLogger(logging.ComponentClient)

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		pacer:   ratelimit.New(cfg.RateLimit, cfg.RateBurst, logging.NewLogger(logging.ComponentRateLimit)),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		config:  cfg,
		logger:  logger,
	}, nil
}

// URL returns the resource address for id: {base}/{cc}/{cc}{ext} with cc
// lower-cased.
func (c *Client) URL(id fetch.Identifier) string {
	cc := strings.ToLower(string(id))
	return c.baseURL + "/" + cc + "/" + cc + c.config.Extension
}

// Fetch downloads the flag of id. A 404 yields an error wrapping
// fetch.ErrNotFound; every other failure is returned as *HTTPError, wrapped
// when retries were exhausted or ctx ended.
func (c *Client) Fetch(ctx context.Context, id fetch.Identifier) ([]byte, error) {
	target := c.URL(id)

	startTime := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(startTime).Seconds())
	}()

	var body []byte
	retry := RetryConfig{
		MaxAttempts:       c.config.MaxAttempts,
		InitialBackoff:    c.config.InitialBackoff,
		MaxBackoff:        c.config.MaxBackoff,
		BackoffMultiplier: 2.0,
	}

	err := retryWithBackoff(ctx, retry, c.logger, func() error {
		if err := c.pacer.Wait(ctx); err != nil {
			return err
		}

		data, err := c.get(ctx, target)
		if err != nil {
			return err
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// get performs a single attempt.
func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "image/gif, */*")

	c.logger.Debug().
		Str("url", target).
		Msg("Executing flag request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errClass := c.classifyError(nil, err)
		errorsTotal.WithLabelValues(string(errClass)).Inc()
		requestsTotal.WithLabelValues("network_error").Inc()
		c.logger.Debug().Err(err).Str("url", target).Msg("HTTP request failed")
		return nil, &HTTPError{
			ErrorClass: errClass,
			URL:        target,
			Err:        networkCause(err),
		}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	switch {
	case resp.StatusCode == http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return nil, &HTTPError{
				StatusCode: resp.StatusCode,
				ErrorClass: ErrorClassNetwork,
				URL:        target,
				Err:        fmt.Errorf("read body: %w", err),
			}
		}
		return data, nil

	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %s", fetch.ErrNotFound, target)

	default:
		io.Copy(io.Discard, resp.Body)
		errClass := c.classifyError(resp, nil)
		errorsTotal.WithLabelValues(string(errClass)).Inc()

		c.logger.Debug().
			Str("url", target).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Flag request error")

		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Reason:     reason(resp),
			ErrorClass: errClass,
			URL:        target,
		}
	}
}

// classifyError categorizes an error for observability and handling.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// reason extracts the reason phrase of resp, falling back to the standard text.
func reason(resp *http.Response) string {
	phrase := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if phrase == "" {
		phrase = http.StatusText(resp.StatusCode)
	}
	return phrase
}

// networkCause strips the *url.Error envelope so the reported message is the
// underlying cause.
func networkCause(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}

// Pacer returns the request pacer (for testing).
func (c *Client) Pacer() *ratelimit.Pacer {
	return c.pacer
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
