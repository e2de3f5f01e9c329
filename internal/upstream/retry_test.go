package upstream

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetry(max int) RetryConfig {
	return RetryConfig{MaxRetries: max, BaseDelay: time.Millisecond, MaxJitter: time.Millisecond}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return &Retryable{Err: ErrRateLimited}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetryCapReturnsWrappedError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(3), func(context.Context) error {
		calls++
		return &Retryable{Err: ErrRateLimited}
	})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	// 1 initial try + 3 retries.
	if calls != 4 {
		t.Fatalf("calls = %d, want 4", calls)
	}
}

func TestRetryNonRetryableIsTerminal(t *testing.T) {
	calls := 0
	terminal := &HTTPError{Status: 500}
	err := Retry(context.Background(), fastRetry(3), func(context.Context) error {
		calls++
		return terminal
	})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != 500 {
		t.Fatalf("err = %v, want HTTPError{500}", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRetryWaitOverridesBackoff(t *testing.T) {
	calls := 0
	start := time.Now()
	err := Retry(context.Background(), RetryConfig{MaxRetries: 1, BaseDelay: time.Hour, MaxJitter: time.Millisecond},
		func(context.Context) error {
			calls++
			if calls == 1 {
				return &Retryable{Err: ErrRateLimited, Wait: time.Millisecond}
			}
			return nil
		})
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Wait override not honored, slept %v", elapsed)
	}
}

func TestRetryContextCancelAbortsSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Retry(ctx, RetryConfig{MaxRetries: 2, BaseDelay: time.Hour, MaxJitter: time.Millisecond},
		func(context.Context) error {
			return &Retryable{Err: ErrRateLimited}
		})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestTransportErrorUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := error(&TransportError{Err: inner})
	if !errors.Is(err, inner) {
		t.Fatal("TransportError must unwrap to the inner error")
	}
}
