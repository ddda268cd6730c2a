// Package retry applies a bounded exponential backoff policy to a unit of
// work. Every network call made by the reconciler goes through Do.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Defaults used when a Policy field is zero.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMultiplier  = 2.0
	DefaultMaxDelay    = 10 * time.Second
)

// Policy describes how many times to attempt a call and how long to wait
// between attempts. The wait before attempt n+1 is
// BaseDelay × Multiplier^(n−1), capped at MaxDelay.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration

	// Retryable reports whether an error is worth another attempt.
	// Nil retries every error.
	Retryable func(error) bool

	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns a policy with the package defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Multiplier:  DefaultMultiplier,
		MaxDelay:    DefaultMaxDelay,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultMultiplier
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.Sleep == nil {
		p.Sleep = sleep
	}
	return p
}

// Delay returns the wait after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the last attempt's error.
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Attempts returns how many attempts produced err, or 1 if err did not
// come from Do.
func Attempts(err error) int {
	var e *ExhaustedError
	if errors.As(err, &e) {
		return e.Attempts
	}
	return 1
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// policy's attempts are used up. fn receives the 1-based attempt number.
//
// Context cancellation stops further attempts; the context error is
// returned wrapped together with the last failure, if any.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) error {
	p = p.normalized()

	var last error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return fmt.Errorf("%w (last error: %v)", err, last)
			}
			return err
		}

		last = fn(ctx, attempt)
		if last == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(last) {
			return last
		}
		if attempt == p.MaxAttempts {
			break
		}
		if err := p.Sleep(ctx, p.Delay(attempt)); err != nil {
			return fmt.Errorf("%w (last error: %v)", err, last)
		}
	}
	return &ExhaustedError{Attempts: p.MaxAttempts, Err: last}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
