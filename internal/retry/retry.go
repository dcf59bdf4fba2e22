// Package retry implements the exponential-capped retry policy of spec.md
// Section 5: default 6 attempts, 10s initial delay doubling each attempt.
// Do retries every error except one wrapped with MarkPermanent; it does not
// classify errors itself, so a business error is retried unless the
// caller marks it permanent.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy configures the backoff schedule.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

// DefaultPolicy matches spec.md's stated defaults.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 6, InitialDelay: 10 * time.Second}
}

// Permanent wraps an error to mark it as non-retryable (spec.md's
// "business errors... never retried": device-not-found, device-not-bound,
// remote 4xx business codes).
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// MarkPermanent wraps err so Do will not retry it.
func MarkPermanent(err error) error {
	if err == nil {
		return nil
	}
	return &Permanent{Err: err}
}

// Do runs fn, retrying on transient failure up to policy.MaxAttempts times
// with the delay doubling after each attempt. It stops immediately if fn
// returns a *Permanent error, or if ctx is done.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	delay := policy.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		var perm *Permanent
		if errors.As(lastErr, &perm) {
			return perm.Err
		}
		if attempt == policy.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastErr
}
