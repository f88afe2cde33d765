package resilience

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Throttle admits at most one call per interval. It is not shared between
// workers; each worker owns its own Throttle.
type Throttle struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// NewThrottle returns a Throttle spacing calls by interval. An interval of
// zero or less disables throttling.
func NewThrottle(interval time.Duration) *Throttle {
	if interval <= 0 {
		return &Throttle{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Throttle{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}
}

// Interval returns the configured spacing.
func (t *Throttle) Interval() time.Duration {
	return t.interval
}

// Wait blocks until the next call may start or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "throttle: wait")
	}
	return nil
}

// Call waits for the throttle and then runs fn.
func Call[T any](ctx context.Context, t *Throttle, fn func(ctx context.Context) (T, error)) (T, error) {
	if err := t.Wait(ctx); err != nil {
		var zero T
		return zero, err
	}
	return fn(ctx)
}
