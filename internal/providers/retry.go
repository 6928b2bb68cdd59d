package providers

import (
	"context"
	"time"

	"creativemind-api/internal/shared"
)

// Policy bounds retries around a single blocking operation. Retries are
// sequential within the calling task; there are no speculative parallel
// attempts.
type Policy struct {
	MaxRetries int
	Delay      time.Duration
	Retryable  func(error) bool
}

// DefaultPolicy retries only timeout-class upstream failures, twice, with a
// fixed delay between attempts.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: shared.MaxProviderRetries,
		Delay:      shared.ProviderRetryDelay,
		Retryable:  shared.IsUpstreamTimeout,
	}
}

// Retry runs op up to MaxRetries+1 times. Non-retryable failures surface
// immediately; exhausting attempts surfaces the last observed failure.
// onRetry, if set, fires once per additional attempt.
func Retry[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error), onRetry func(attempt int)) (T, error) {
	var zero T
	var lastErr error

	attempts := p.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if onRetry != nil {
				onRetry(attempt)
			}
			select {
			case <-time.After(p.Delay):
			case <-ctx.Done():
				return zero, shared.NewUpstreamError(shared.UpstreamTimeout, "canceled while waiting to retry", ctx.Err())
			}
		}

		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if p.Retryable == nil || !p.Retryable(err) {
			return zero, err
		}
	}

	return zero, lastErr
}
