package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"alertsync-backend/internal/model"
)

func TestFetchWithRetryEventuallySucceeds(t *testing.T) {
	calls := 0
	fetch := func(context.Context) ([]model.AlertRecord, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("transient")
		}
		return []model.AlertRecord{{ExternalID: "a-1"}}, nil
	}
	alerts, err := FetchWithRetry(context.Background(), 3, 0, fetch)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if calls != 3 || len(alerts) != 1 {
		t.Fatalf("calls=%d alerts=%d", calls, len(alerts))
	}
}

func TestFetchWithRetryExhaustsAttempts(t *testing.T) {
	wantErr := errors.New("down")
	calls := 0
	fetch := func(context.Context) ([]model.AlertRecord, error) {
		calls++
		return nil, wantErr
	}
	_, err := FetchWithRetry(context.Background(), 4, 0, fetch)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", calls)
	}
}

func TestFetchWithRetryZeroAttemptsMeansOne(t *testing.T) {
	calls := 0
	fetch := func(context.Context) ([]model.AlertRecord, error) {
		calls++
		return nil, nil
	}
	if _, err := FetchWithRetry(context.Background(), 0, 0, fetch); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", calls)
	}
}

func TestFetchWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	fetch := func(context.Context) ([]model.AlertRecord, error) {
		calls++
		cancel()
		return nil, errors.New("transient")
	}
	_, err := FetchWithRetry(ctx, 5, time.Hour, fetch)
	if err == nil {
		t.Fatalf("expected error after cancellation")
	}
	if calls != 1 {
		t.Fatalf("cancelled fetch must not retry, got %d calls", calls)
	}
}
