// Package retry provides a bounded retry policy with pluggable backoff and
// sleep so callers can be tested without real delays.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// BackoffFunc returns the wait after the given zero-based failed attempt.
type BackoffFunc func(attempt int) time.Duration

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy bounds the number of attempts of an operation.
type Policy struct {
	MaxAttempts int
	Backoff     BackoffFunc
	Sleep       SleepFunc
}

// Exponential returns base * 2^attempt: 1s, 2s, 4s for a 1s base.
func Exponential(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	}
}

// Capped limits another backoff to max.
func Capped(b BackoffFunc, max time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		if d := b(attempt); d < max {
			return d
		}
		return max
	}
}

// Default is three attempts with 1s, 2s backoff between them.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     Exponential(time.Second),
		Sleep:       ContextSleep,
	}
}

// ContextSleep waits on a timer and returns early with ctx.Err().
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait sleeps through the policy's sleeper.
func (p Policy) Wait(ctx context.Context, d time.Duration) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = ContextSleep
	}
	return sleep(ctx, d)
}

// Attempts returns MaxAttempts, at least 1.
func (p Policy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Do runs op until it returns nil or attempts run out. op receives the
// zero-based attempt. The last error is returned wrapped with the attempt count.
func (p Policy) Do(ctx context.Context, op func(attempt int) error) error {
	attempts := p.Attempts()
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}
		lastErr = op(attempt)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		if p.Backoff != nil {
			if err := p.Wait(ctx, p.Backoff(attempt)); err != nil {
				return fmt.Errorf("%w (interrupted: %v)", lastErr, err)
			}
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}
