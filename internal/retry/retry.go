// Package retry is the single retry-with-backoff utility used by every
// network call site. Transient errors are retried with exponential
// backoff up to a small ceiling; validation and already-processed
// conditions must be marked Permanent so they are never retried.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// MaxAttempts is the retry ceiling: one initial try plus two retries.
const MaxAttempts = 3

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op with the default exponential policy, honoring ctx
// cancellation between attempts.
func Do(ctx context.Context, op func() error) error {
	return DoWithPolicy(ctx, defaultPolicy(), op)
}

// DoIf is like Do but classifies errors through retryable: anything the
// predicate declines is treated as permanent.
func DoIf(ctx context.Context, retryable func(error) bool, op func() error) error {
	return DoWithPolicy(ctx, defaultPolicy(), func() error {
		err := op()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	})
}

// DoWithPolicy runs op under an explicit backoff policy. Mostly useful
// for tests that can't afford real backoff intervals.
func DoWithPolicy(ctx context.Context, policy backoff.BackOff, op func() error) error {
	wrapped := backoff.WithContext(backoff.WithMaxRetries(policy, MaxAttempts-1), ctx)
	return backoff.Retry(op, wrapped)
}

func defaultPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}
