// Package retry wraps operations with bounded exponential backoff. Errors are
// classified through errclass: transient failures back off and retry, while
// quota/auth/not-found/malformed failures abort after the first attempt.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/wcarena/creator-sync/errclass"
)

// Policy controls attempt count and backoff growth.
// Delay before attempt n (n >= 2) is BaseDelay * 2^(n-2).
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	OnRetry     func(attempt int, err error, backoff time.Duration)
}

// Default matches the provider call policy: three attempts, one second base.
func Default() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second}
}

// Operation produces a value or an error.
type Operation[T any] func() (T, error)

// Do runs op under the policy. Permanent errors (per errclass) short-circuit:
// quota exhaustion in particular is never transient and must not burn
// additional budget on doomed attempts.
func Do[T any](ctx context.Context, p Policy, op Operation[T]) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	backoff := p.BaseDelay

	for attempt := 1; ; attempt++ {
		val, err := op()
		if err == nil {
			return val, nil
		}
		if errclass.IsPermanent(err) {
			return zero, err
		}
		if attempt == p.MaxAttempts {
			return zero, fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, err)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, backoff)
		}
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}
}

// DoVoid is Do for operations without a result.
func DoVoid(ctx context.Context, p Policy, op func() error) error {
	_, err := Do(ctx, p, func() (struct{}, error) { return struct{}{}, op() })
	return err
}
