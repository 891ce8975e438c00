package utils

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig holds the parameters for the retry strategy.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// Backoff returns the delay before retry n (0-based). Nil means JitterBackoff.
	Backoff func(retry int) time.Duration
	// Retryable reports whether err should be retried. Nil retries everything.
	Retryable func(err error) bool
	Logger    *Logger
}

// RetryExhaustedError is returned once a retryable failure persisted past MaxRetries.
type RetryExhaustedError struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Operation, e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// JitterBackoff waits floor(uniform(2,4)^retry) seconds, so the first retry
// comes after about a second and later ones grow geometrically.
func JitterBackoff(retry int) time.Duration {
	base := 2 + rand.Float64()*2
	return time.Duration(math.Floor(math.Pow(base, float64(retry)))) * time.Second
}

// NoBackoff retries immediately.
func NoBackoff(int) time.Duration { return 0 }

// Do executes fn until it succeeds, returns a non-retryable error, or the
// retry budget is spent. fn receives the 1-based attempt number.
func (r *RetryConfig) Do(ctx context.Context, operationName string, fn func(attempt int) error) error {
	backoff := r.Backoff
	if backoff == nil {
		backoff = JitterBackoff
	}

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if r.Retryable != nil && !r.Retryable(err) {
			return err
		}
		if attempt > r.MaxRetries {
			return &RetryExhaustedError{Operation: operationName, Attempts: attempt, Err: err}
		}

		delay := backoff(attempt - 1)
		if r.Logger != nil {
			r.Logger.Warn("[retry] %s failed (attempt %d/%d): %v, retrying in %v",
				operationName, attempt, r.MaxRetries+1, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
