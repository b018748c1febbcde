package gateway

import (
	"context"
	"time"

	"chatbi/internal/logging"
)

// retryPolicy implements the backoff protocol: a call failing with a
// rate-limit error is retried with delay base*2^attempt until the
// attempt ceiling; any other error class propagates on first sight.
// Exhausting the ceiling returns the last rate-limit error.
type retryPolicy struct {
	base        time.Duration
	maxAttempts int
	wait        func(context.Context, time.Duration) error // injectable for tests
}

func newRetryPolicy(base time.Duration, maxAttempts int) retryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return retryPolicy{base: base, maxAttempts: maxAttempts, wait: ctxWait}
}

// ctxWait sleeps for d, waking early when the context is cancelled.
func ctxWait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p retryPolicy) do(ctx context.Context, op string, fn func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		out, err := fn()
		if err == nil {
			return out, nil
		}
		if !IsRateLimit(err) {
			return "", err
		}
		lastErr = err
		if attempt < p.maxAttempts-1 {
			delay := p.base * (1 << attempt)
			logging.GatewayWarn("%s rate limited (attempt %d/%d), backing off %v", op, attempt+1, p.maxAttempts, delay)
			if err := p.wait(ctx, delay); err != nil {
				return "", err
			}
		}
	}
	logging.GatewayError("%s exhausted %d attempts: %v", op, p.maxAttempts, lastErr)
	return "", lastErr
}
