package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// RetryPolicy bounds how often and how patiently an operation is retried.
// The zero value performs exactly one attempt.
type RetryPolicy struct {
	// Retries is the number of additional attempts after the first. Zero
	// means fail fast.
	Retries int

	// BaseDelay is the backoff before the first retry. Default: 200ms.
	BaseDelay time.Duration

	// MaxDelay caps the backoff between attempts. Default: 2s.
	MaxDelay time.Duration

	// Retryable reports whether err warrants another attempt. Default: every
	// error except [ErrCircuitOpen] and context errors.
	Retryable func(error) bool
}

// backoff returns the full-jitter delay before retry number n (0-based).
func (p RetryPolicy) backoff(n int) time.Duration {
	base, maxDelay := p.BaseDelay, p.MaxDelay
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	d := base << n
	if d <= 0 || d > maxDelay {
		d = maxDelay
	}
	return time.Duration(rand.Int64N(int64(d)) + 1)
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return !isTerminal(err)
}

// Retry calls fn until it succeeds, the policy is exhausted, the error is not
// retryable, or ctx is done. It returns the last error from fn.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= p.Retries || !p.retryable(err) {
			return err
		}
		t := time.NewTimer(p.backoff(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
}

func isTerminal(err error) bool {
	return errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
