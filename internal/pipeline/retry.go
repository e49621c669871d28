package pipeline

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// RetryPolicy bounds the attempts per chunk. Delay receives the 1-based
// number of the attempt that just failed.
type RetryPolicy struct {
	MaxAttempts int
	Delay       func(attempt int) time.Duration
}

// FixedDelay waits d between attempts.
func FixedDelay(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

// LinearDelay waits attempt*d: d after the first failure, 2d after the second.
func LinearDelay(d time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration { return time.Duration(attempt) * d }
}

// NoDelay retries immediately.
func NoDelay(int) time.Duration { return 0 }

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	if p.Delay == nil {
		return 0
	}
	return p.Delay(attempt)
}

// sleepWithContext waits d on clock. Returns false if ctx ended first.
func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
