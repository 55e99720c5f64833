package scanner

import (
	"context"
	"time"

	"github.com/wnt/lbscout/internal/rpc"
)

// RetryPolicy decides how often and how patiently a pool read is retried
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int
	// Backoff returns the wait after the given failed attempt (1-based)
	Backoff func(attempt int) time.Duration
	// Retryable reports whether an error is worth another attempt
	Retryable func(err error) bool
}

// DefaultRetryPolicy retries rate-limited reads up to 3 attempts with a 2.5s linear backoff
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     LinearBackoff(2500 * time.Millisecond),
		Retryable:   rpc.IsRateLimited,
	}
}

// LinearBackoff waits step * attempt
func LinearBackoff(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return step * time.Duration(attempt)
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.Backoff == nil {
		p.Backoff = def.Backoff
	}
	if p.Retryable == nil {
		p.Retryable = def.Retryable
	}
	return p
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the real-time Sleeper
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
