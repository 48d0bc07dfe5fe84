package crawl

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// DefaultJitter is the upper bound of the random delay added after each
// rate-limited wait so request timing does not look mechanical.
const DefaultJitter = 500 * time.Millisecond

// Limiter paces page and feed transitions from a requests-per-minute budget
// plus jitter. It is applied once per page/feed transition, not per item.
type Limiter struct {
	limiter *rate.Limiter
	jitter  time.Duration
}

// NewLimiter creates a limiter from a requests-per-minute budget.
// A non-positive budget falls back to 30 requests per minute.
func NewLimiter(perMinute int, jitter time.Duration) *Limiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		jitter:  jitter,
	}
}

// Wait blocks until the budget allows the next request, then sleeps a random
// jitter. Returns early with the context error on cancellation.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	if l.jitter <= 0 {
		return nil
	}

	timer := time.NewTimer(time.Duration(rand.Int63n(int64(l.jitter))))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
