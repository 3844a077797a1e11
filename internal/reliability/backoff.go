package reliability

import (
	"context"
	"math"
	"time"
)

// ExponentialBackoff returns base * multiplier^attempt, capped at max when
// max is positive. With max == 0 growth is unbounded, which matches the
// historical pipeline behavior for small retry counts.
func ExponentialBackoff(attempt int, base time.Duration, multiplier float64, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	backoff := time.Duration(float64(base) * math.Pow(multiplier, float64(attempt)))
	if max > 0 && backoff > max {
		backoff = max
	}
	return backoff
}

// Wait sleeps for d or until ctx is done, whichever comes first. Returns
// ctx.Err() when the wait was interrupted.
func Wait(ctx context.Context, d time.Duration) error {
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
