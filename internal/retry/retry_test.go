package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoRetriesUntilSuccess(t *testing.T) {
	p := Policy{Timeout: time.Second, MaxAttempts: 3, Backoff: time.Millisecond}
	calls := 0
	var notified []int
	err := p.Do(context.Background(), func(attempt int, _ error, _ time.Duration) {
		notified = append(notified, attempt)
	}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(notified) != 2 || notified[0] != 1 || notified[1] != 2 {
		t.Fatalf("expected notifications for attempts 1 and 2, got %v", notified)
	}
}

func TestDoStopsAfterMaxAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 2, Backoff: time.Millisecond}
	calls := 0
	boom := errors.New("boom")
	err := p.Do(context.Background(), nil, func(ctx context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	p := Policy{MaxAttempts: 5, Backoff: time.Millisecond}
	calls := 0
	rejected := errors.New("rejected")
	err := p.Do(context.Background(), nil, func(ctx context.Context) error {
		calls++
		return Permanent(rejected)
	})
	if err != rejected {
		t.Fatalf("expected unwrapped permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestDoAppliesPerAttemptTimeout(t *testing.T) {
	p := Policy{Timeout: 10 * time.Millisecond, MaxAttempts: 1}
	err := p.Do(context.Background(), nil, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSingleLimitsAttempts(t *testing.T) {
	p := DefaultPolicy().Single()
	if p.MaxAttempts != 1 || p.Timeout != 8*time.Second {
		t.Fatalf("unexpected policy %+v", p)
	}
}
