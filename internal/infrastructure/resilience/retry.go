package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// jitterFraction bounds the random addition to a backoff delay, as a share
// of the computed delay.
const jitterFraction = 0.3

// Policy configures retry-with-backoff behavior.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int
	// InitialDelay is the backoff before the second attempt
	InitialDelay time.Duration
	// MaxDelay caps the exponential growth
	MaxDelay time.Duration
	// Factor is the exponential multiplier; 1 yields fixed-delay retry
	Factor float64
	// Jitter adds uniform(0, 0.3*delay) to each backoff
	Jitter bool
	// IsRetryable decides whether an error is worth another attempt;
	// defaults to DefaultRetryable
	IsRetryable func(error) bool
}

// withDefaults fills zero fields with the standard policy.
func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 10 * time.Second
	}
	if p.Factor <= 0 {
		p.Factor = 2
	}
	if p.IsRetryable == nil {
		p.IsRetryable = DefaultRetryable
	}
	return p
}

// DefaultRetryable retries network-level failures (no status attached) and
// server errors; client errors are never retried.
func DefaultRetryable(err error) bool {
	code, ok := statusOf(err)
	if !ok {
		return true
	}
	return code >= 500 && code < 600
}

// Retry executes the operation up to MaxAttempts times with exponential
// backoff. Non-retryable errors abort immediately; the last attempt's
// error is returned verbatim so callers can inspect the original failure.
func Retry(ctx context.Context, op Operation, policy Policy) (any, error) {
	policy = policy.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !policy.IsRetryable(err) {
			return nil, err
		}
		if attempt == policy.MaxAttempts {
			break
		}

		if err := sleep(ctx, policy.backoff(attempt)); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

// backoff computes the delay after the given attempt number (1-based).
func (p Policy) backoff(attempt int) time.Duration {
	delay := time.Duration(float64(p.InitialDelay) * math.Pow(p.Factor, float64(attempt-1)))
	if delay <= 0 || delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter {
		delay += time.Duration(rand.Float64() * jitterFraction * float64(delay))
	}
	return delay
}

// sleep waits for the backoff delay, honoring context cancellation.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
