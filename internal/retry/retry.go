package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Jitter      time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Delay: 2 * time.Second}
}

// Do runs fn until it succeeds, returns an error shouldRetry rejects, or the
// policy runs out of attempts. It returns the number of attempts made and the
// last error. A nil shouldRetry retries every error.
func Do(ctx context.Context, policy Policy, shouldRetry func(error) bool, fn func(ctx context.Context, attempt int) error) (int, error) {
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		if shouldRetry != nil && !shouldRetry(err) {
			return attempt, err
		}
		if attempt == maxAttempts {
			return attempt, err
		}
		if waitErr := sleep(ctx, policy.wait()); waitErr != nil {
			return attempt, err
		}
	}
	return maxAttempts, err
}

func (p Policy) wait() time.Duration {
	if p.Jitter <= 0 {
		return p.Delay
	}
	return p.Delay + time.Duration(rand.Int64N(int64(p.Jitter))) //nolint:gosec // jitter only
}

func sleep(ctx context.Context, d time.Duration) error {
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
