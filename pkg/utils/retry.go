package utils

import (
	"context"
	"fmt"
	"time"
)

// CallWithRetry calls fn up to maxAttempts times, sleeping backoff between
// attempts. It returns the first successful result, or the last error once
// the attempts are exhausted. Cancelling the context stops the retry loop.
func CallWithRetry[T any](ctx context.Context, fn func() (T, error), maxAttempts int, backoff time.Duration) (T, error) {
	var zero T
	var err error
	for i := 0; i < maxAttempts; i++ {
		var t T
		if t, err = fn(); err == nil {
			return t, nil
		}
		if i == maxAttempts-1 {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	return zero, fmt.Errorf("failed after %d attempts: %w", maxAttempts, err)
}
