package transfer

import (
	"context"
	"math/rand/v2"
	"time"
)

// backoff returns the full-jitter delay before retry number attempt
// (starting at 0): uniform in [0, min(limit, base*2^attempt)).
func backoff(base, limit time.Duration, attempt int) time.Duration {
	if base <= 0 || limit <= 0 {
		return 0
	}
	ceiling := base
	for i := 0; i < attempt && ceiling < limit; i++ {
		ceiling *= 2
	}
	if ceiling > limit {
		ceiling = limit
	}
	return rand.N(ceiling)
}

// sleep waits for d or until ctx is done, whichever is first.
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
