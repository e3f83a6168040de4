package bgg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bggstats/internal/components/chrono"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy decides how often and how long to wait before an operation is tried again.
type RetryPolicy struct {
	// MaxAttempts counts the first try.
	MaxAttempts int
	// Backoff returns the wait before attempt+1, `attempt` starts at 1.
	Backoff func(attempt int, err error) time.Duration
	// Retryable reports whether err is worth another attempt.
	Retryable func(err error) bool
}

// IsRetryable matches rate limiting and transient failures.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient)
}

// ScalingBackoff waits `step` times the attempt number after a rate limit answer and
// `fixed` after any other failure.
func ScalingBackoff(step, fixed time.Duration) func(int, error) time.Duration {
	return func(attempt int, err error) time.Duration {
		if errors.Is(err, ErrRateLimited) {
			return step * time.Duration(attempt)
		}
		return fixed
	}
}

// FixedBackoff always waits `d`.
func FixedBackoff(d time.Duration) func(int, error) time.Duration {
	return func(int, error) time.Duration {
		return d
	}
}

// DefaultFetchRetryPolicy is used for catalog pages and statistics batches.
func DefaultFetchRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		Backoff:     ScalingBackoff(10*time.Second, 5*time.Second),
		Retryable:   IsRetryable,
	}
}

// DefaultOwnershipRetryPolicy is used for the collection endpoint, which answers
// 202 until the collection has been prepared.
func DefaultOwnershipRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 50,
		Backoff:     FixedBackoff(5 * time.Second),
		Retryable:   IsRetryable,
	}
}

func (p RetryPolicy) orDefault(def RetryPolicy) RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.Backoff == nil {
		p.Backoff = def.Backoff
	}
	if p.Retryable == nil {
		p.Retryable = def.Retryable
	}
	return p
}

// RetryNotify is called before every wait with the failed attempt number.
type RetryNotify func(attempt int, err error, wait time.Duration)

// Do runs op until it succeeds, fails with a non-retryable error, `ctx` ends or the
// attempts run out, in which case the last error is wrapped in ErrRetryBudgetExhausted.
func (p RetryPolicy) Do(ctx context.Context, sleeper chrono.Sleeper, notify RetryNotify, op func() error) error {
	if p.MaxAttempts <= 0 {
		return fmt.Errorf("retry policy: max attempts must be positive, got %d", p.MaxAttempts)
	}

	b := &policyBackOff{policy: p}
	attempts := 0
	permanent := false

	operation := func() error {
		attempts++
		err := op()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !p.Retryable(err) {
			permanent = true
			return backoff.Permanent(err)
		}
		b.lastErr = err
		return err
	}

	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, wait time.Duration) {
			notify(attempts, err, wait)
		}
	}

	err := backoff.RetryNotifyWithTimer(
		operation,
		backoff.WithMaxRetries(backoff.WithContext(b, ctx), uint64(p.MaxAttempts-1)),
		onRetry,
		&sleeperTimer{ctx: ctx, sleeper: sleeper},
	)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if permanent {
		return err
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetryBudgetExhausted, attempts, err)
}

// policyBackOff adapts a RetryPolicy to backoff.BackOff, the wait depends on the
// error of the attempt that just failed.
type policyBackOff struct {
	policy  RetryPolicy
	attempt int
	lastErr error
}

func (b *policyBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.policy.Backoff(b.attempt, b.lastErr)
}

func (b *policyBackOff) Reset() {
	b.attempt = 0
	b.lastErr = nil
}

// sleeperTimer implements backoff.Timer on top of a chrono.Sleeper.
type sleeperTimer struct {
	ctx     context.Context
	sleeper chrono.Sleeper
	c       chan time.Time
}

func (t *sleeperTimer) Start(d time.Duration) {
	c := make(chan time.Time, 1)
	t.c = c
	go func() {
		if t.sleeper.Sleep(t.ctx, d) == nil {
			c <- time.Now()
		}
	}()
}

func (t *sleeperTimer) Stop() {}

func (t *sleeperTimer) C() <-chan time.Time {
	return t.c
}
