package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    5 * time.Millisecond,
		MaxBackoff:        20 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", config.MaxAttempts)
	}
	if config.InitialBackoff != 500*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 500ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 10*time.Second {
		t.Errorf("MaxBackoff = %v, want 10s", config.MaxBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	attempts := 0
	err := retryWithBackoff(context.Background(), fastRetry(3), zerolog.Nop(), func() error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetryWithBackoff_SuccessAfterRetry(t *testing.T) {
	attempts := 0
	err := retryWithBackoff(context.Background(), fastRetry(3), zerolog.Nop(), func() error {
		attempts++
		if attempts < 3 {
			return &HTTPError{StatusCode: 503, Reason: "Service Unavailable", ErrorClass: ErrorClassServer}
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryWithBackoff_MaxAttemptsExhausted(t *testing.T) {
	attempts := 0
	serverErr := &HTTPError{StatusCode: 500, Reason: "Internal Server Error", ErrorClass: ErrorClassServer}
	err := retryWithBackoff(context.Background(), fastRetry(3), zerolog.Nop(), func() error {
		attempts++
		return serverErr
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("error = %v, want ErrRetryExhausted", err)
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 500 {
		t.Errorf("exhausted error should wrap the last HTTPError, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryWithBackoff_SingleAttemptReturnsCause(t *testing.T) {
	serverErr := &HTTPError{StatusCode: 503, Reason: "Service Unavailable", ErrorClass: ErrorClassServer}
	err := retryWithBackoff(context.Background(), fastRetry(1), zerolog.Nop(), func() error {
		return serverErr
	})

	if err != serverErr {
		t.Errorf("error = %v, want the unwrapped cause", err)
	}
	if err.Error() != "HTTP 503 - Service Unavailable" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestRetryWithBackoff_ClientErrorNoRetry(t *testing.T) {
	attempts := 0
	clientErr := &HTTPError{StatusCode: 403, Reason: "Forbidden", ErrorClass: ErrorClassClient}
	err := retryWithBackoff(context.Background(), fastRetry(5), zerolog.Nop(), func() error {
		attempts++
		return clientErr
	})

	if err != clientErr {
		t.Errorf("error = %v, want the client error unchanged", err)
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("client error must not be reported as exhausted")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetryWithBackoff_UnclassifiedNoRetry(t *testing.T) {
	attempts := 0
	_ = retryWithBackoff(context.Background(), fastRetry(5), zerolog.Nop(), func() error {
		attempts++
		return errors.New("create request: bad url")
	})

	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    time.Second,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 2.0,
	}

	attempts := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := retryWithBackoff(ctx, cfg, zerolog.Nop(), func() error {
		attempts++
		return &HTTPError{StatusCode: 500, ErrorClass: ErrorClassServer}
	})

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("error = %v, want ErrContextCancelled", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled in chain", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("cancellation took %v, backoff wait was not interrupted", elapsed)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetryWithBackoff_ContextCancelledImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retryWithBackoff(ctx, fastRetry(3), zerolog.Nop(), func() error {
		return ctx.Err()
	})

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("error = %v, want ErrContextCancelled", err)
	}
}

func TestRetryWithBackoff_DeadlineExceeded(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	cfg := RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    time.Second,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 2.0,
	}
	err := retryWithBackoff(ctx, cfg, zerolog.Nop(), func() error {
		return &HTTPError{StatusCode: 503, ErrorClass: ErrorClassServer}
	})

	if err != context.DeadlineExceeded {
		t.Errorf("error = %v, want context.DeadlineExceeded unwrapped", err)
	}
	if errors.Is(err, ErrContextCancelled) {
		t.Error("an expired deadline must not be reported as a cancellation")
	}
}

func TestRetryWithBackoff_ExponentialBackoff(t *testing.T) {
	var stamps []time.Time
	cfg := RetryConfig{
		MaxAttempts:       4,
		InitialBackoff:    20 * time.Millisecond,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 2.0,
	}

	_ = retryWithBackoff(context.Background(), cfg, zerolog.Nop(), func() error {
		stamps = append(stamps, time.Now())
		return &HTTPError{StatusCode: 502, ErrorClass: ErrorClassServer}
	})

	if len(stamps) != 4 {
		t.Fatalf("attempts = %d, want 4", len(stamps))
	}

	// Intervals grow 20ms, 40ms, 80ms with ±20% jitter.
	wantMin := []time.Duration{16 * time.Millisecond, 32 * time.Millisecond, 64 * time.Millisecond}
	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		if gap < wantMin[i-1] {
			t.Errorf("gap %d = %v, want >= %v", i, gap, wantMin[i-1])
		}
	}
}

func TestRetryWithBackoff_MaxBackoffCap(t *testing.T) {
	var stamps []time.Time
	cfg := RetryConfig{
		MaxAttempts:       4,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        15 * time.Millisecond,
		BackoffMultiplier: 10.0,
	}

	_ = retryWithBackoff(context.Background(), cfg, zerolog.Nop(), func() error {
		stamps = append(stamps, time.Now())
		return &HTTPError{ErrorClass: ErrorClassNetwork, Err: errors.New("timeout")}
	})

	for i := 2; i < len(stamps); i++ {
		// 15ms cap plus 20% jitter plus scheduling slack.
		if gap := stamps[i].Sub(stamps[i-1]); gap > 200*time.Millisecond {
			t.Errorf("gap %d = %v exceeds the capped backoff", i, gap)
		}
	}
}
