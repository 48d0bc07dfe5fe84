package crawl

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy is the single retry policy applied to page-processing attempts
// across all sources. The delay before attempt n is BaseDelay × n plus a
// random jitter.
type RetryPolicy struct {
	// MaxAttempts bounds total attempts, including the first.
	MaxAttempts int

	// BaseDelay is multiplied by the attempt number.
	BaseDelay time.Duration

	// Jitter is the upper bound of the random delay added to each backoff.
	Jitter time.Duration
}

// DefaultRetryPolicy returns the policy used when the host configures none.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second, Jitter: DefaultJitter}
}

// Do runs fn until it succeeds, attempts are exhausted, or the context ends.
// onRetry, when non-nil, is invoked before each re-attempt with the attempt
// number just failed and its error.
func (p RetryPolicy) Do(ctx context.Context, fn func() error, onRetry func(attempt int, err error)) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if waitErr := p.backoff(ctx, attempt); waitErr != nil {
			return waitErr
		}
	}
	return err
}

func (p RetryPolicy) backoff(ctx context.Context, attempt int) error {
	delay := p.BaseDelay * time.Duration(attempt)
	if p.Jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(p.Jitter)))
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
