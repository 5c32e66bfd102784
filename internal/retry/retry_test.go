package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastConfig() *Config {
	return &Config{
		MaxRetries:      3,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		BackoffFactor:   2.0,
		RetryableErrors: []string{"connection refused", "database is locked"},
	}
}

func TestWithRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastConfig(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("got %d calls, want 1", calls)
	}
}

func TestWithRetry_RetriesRetryableError(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastConfig(), func() error {
		calls++
		if calls < 3 {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("got %d calls, want 3", calls)
	}
}

func TestWithRetry_NonRetryableErrorFailsFast(t *testing.T) {
	calls := 0
	wantErr := errors.New("syntax error near SELECT")
	err := WithRetry(context.Background(), fastConfig(), func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
	if calls != 1 {
		t.Fatalf("got %d calls, want 1", calls)
	}
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastConfig(), func() error {
		calls++
		return errors.New("database is locked")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 4 {
		t.Fatalf("got %d calls, want 4 (1 + 3 retries)", calls)
	}
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := fastConfig()
	cfg.InitialDelay = time.Second

	err := WithRetry(ctx, cfg, func() error {
		return errors.New("connection refused")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestWithRetry_DoesNotRetryContextErrors(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastConfig(), func() error {
		calls++
		return fmt.Errorf("query timed out: %w", context.DeadlineExceeded)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("got %d calls, want 1", calls)
	}
}

func TestCalculateDelay(t *testing.T) {
	cfg := &Config{
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{10, time.Second},
	}

	for _, tt := range tests {
		if got := cfg.calculateDelay(tt.attempt); got != tt.want {
			t.Errorf("calculateDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
