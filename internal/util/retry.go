package util

import (
	"context"
	"fmt"
	"time"
)

// Retry calls fn up to attempts times with exponential backoff starting at
// base. Used for startup dependencies (the document store in particular) that
// may not be reachable the moment the process starts. Returns the context
// error immediately if the context is cancelled while waiting.
func Retry(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}

		backoff := base * time.Duration(1<<attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
