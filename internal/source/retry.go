package source

import (
	"context"
	"time"

	"alertsync-backend/internal/model"
)

// FetchWithRetry retries a fetch with a fixed delay between attempts,
// bounded by the context. Attempts below 1 are treated as 1. Only read
// fetches are retried this way; outbound action calls are re-queued for the
// next pass instead.
func FetchWithRetry(ctx context.Context, attempts int, delay time.Duration,
	fetch func(context.Context) ([]model.AlertRecord, error)) ([]model.AlertRecord, error) {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		alerts, err := fetch(ctx)
		if err == nil {
			return alerts, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}
