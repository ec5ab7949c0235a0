package real

import (
	"context"
	"time"
)

// Sleeper provides an abstraction over time.Sleep for deterministic testing.
type Sleeper interface {
	// Sleep pauses for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// DefaultSleeper implements Sleeper with a timer.
type DefaultSleeper struct{}

// Sleep pauses for d unless ctx is done first.
func (DefaultSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retry runs op up to attempts times with linear backoff between failures.
// It stops waiting once ctx is done and returns the last attempt's error.
func retry(ctx context.Context, attempts int, backoff time.Duration, sleeper Sleeper, op func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if lastErr = op(attempt); lastErr == nil {
			return nil
		}
		if attempt < attempts-1 {
			if err := sleeper.Sleep(ctx, backoff*time.Duration(attempt+1)); err != nil {
				return lastErr
			}
		}
	}
	return lastErr
}
