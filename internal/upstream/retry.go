package upstream

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig controls the backoff schedule for retryable upstream failures.
type RetryConfig struct {
	// MaxRetries is the number of re-attempts after the first try.
	MaxRetries int
	// BaseDelay is the first backoff; doubled on each subsequent attempt.
	BaseDelay time.Duration
	// MaxJitter adds a random duration in [0, MaxJitter) to every backoff.
	MaxJitter time.Duration
}

// DefaultRetry is the catalog client schedule: up to 3 retries,
// 1s * 2^attempt plus jitter.
func DefaultRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: time.Second, MaxJitter: 500 * time.Millisecond}
}

// Retryable marks an error as transient. Wait, when positive, overrides the
// computed backoff (used for Retry-After).
type Retryable struct {
	Err  error
	Wait time.Duration
}

func (e *Retryable) Error() string { return e.Err.Error() }
func (e *Retryable) Unwrap() error { return e.Err }

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// retry cap is exhausted. Only errors of type *Retryable are retried; the
// wrapped error is returned once the cap is hit. Sleeps are local to the
// call and abort early on context cancellation.
func Retry(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) error {
	var last *Retryable
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		r, ok := err.(*Retryable)
		if !ok {
			return err
		}
		last = r
		if attempt >= cfg.MaxRetries {
			return last.Err
		}
		wait := r.Wait
		if wait <= 0 {
			wait = cfg.BaseDelay*(1<<attempt) + time.Duration(rand.Int63n(int64(cfg.MaxJitter)+1))
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
