// Package retry applies one timeout/attempts/backoff policy to calls against
// external services.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds a single logical call: each attempt gets Timeout, at most
// MaxAttempts attempts are made, and the wait before attempt n+1 is Backoff*2^(n-1).
type Policy struct {
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultPolicy is 8s per attempt, three attempts, waiting 1s then 2s.
func DefaultPolicy() Policy {
	return Policy{Timeout: 8 * time.Second, MaxAttempts: 3, Backoff: time.Second}
}

// Single returns a copy of p limited to one attempt.
func (p Policy) Single() Policy {
	p.MaxAttempts = 1
	return p
}

// Notify is called after a failed attempt that will be retried.
type Notify func(attempt int, err error, wait time.Duration)

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do runs fn under the policy. fn receives a context bounded by the per-attempt
// timeout. The last attempt's error is returned once attempts are exhausted.
func (p Policy) Do(ctx context.Context, notify Notify, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	attempt := 0
	op := func() error {
		attempt++
		attemptCtx := ctx
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
			defer cancel()
		}
		return fn(attemptCtx)
	}

	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, wait time.Duration) {
			notify(attempt, err, wait)
		}
	}

	err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(p.backOff(), uint64(attempts-1)), ctx), onRetry)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}

func (p Policy) backOff() backoff.BackOff {
	if p.Backoff <= 0 {
		return &backoff.ZeroBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Backoff
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = 30 * p.Backoff
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
