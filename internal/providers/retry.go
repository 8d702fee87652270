package providers

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// BackoffPolicy bounds retries of idempotent read calls. It is never applied
// to item creation.
type BackoffPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultBackoff is 3 attempts starting at one second, doubling each time.
var DefaultBackoff = BackoffPolicy{
	MaxAttempts: 3,
	BaseDelay:   time.Second,
	Multiplier:  2,
}

// Delay returns the wait before retry number n (1-based).
func (p BackoffPolicy) Delay(n int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 1; i < n; i++ {
		d *= p.Multiplier
	}
	return time.Duration(d)
}

func (p BackoffPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Retry calls fn until it succeeds, returns a permanent error, or the policy
// is exhausted. The last error is returned.
func Retry(ctx context.Context, p BackoffPolicy, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= p.attempts(); attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if isPermanent(err) || attempt == p.attempts() {
			break
		}

		wait := p.Delay(attempt)
		slog.Debug("retrying platform call", "op", op, "attempt", attempt, "wait", wait, "error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

// RetryValue is Retry for calls that return a value.
func RetryValue[T any](ctx context.Context, p BackoffPolicy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Retry(ctx, p, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// isPermanent reports errors a retry cannot fix.
func isPermanent(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}

	var (
		cfgErr     *ConfigValidationError
		unknownErr *UnknownOutcomeError
		apiErr     *APIError
	)
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &unknownErr):
		return true
	case errors.Is(err, ErrMissingIdentifier), errors.Is(err, ErrAmbiguousSite):
		return true
	case errors.As(err, &apiErr):
		return !apiErr.Temporary()
	}
	return false
}
