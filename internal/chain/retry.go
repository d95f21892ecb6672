package chain

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	defaultRetryDelay = 100 * time.Millisecond
	maxRetryDelay     = 30 * time.Second
)

// retrier retries RPC calls with doubling delays capped at maxRetryDelay.
type retrier struct {
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
}

func newRetrier(maxRetries int, baseDelay time.Duration, logger *zap.Logger) retrier {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = defaultRetryDelay
	}
	return retrier{maxRetries: maxRetries, baseDelay: baseDelay, logger: logger}
}

// do calls fn until it succeeds, retries run out, or ctx ends. Each failure
// is logged at Warn with op and fields.
func (r retrier) do(ctx context.Context, op string, fn func(context.Context) error, fields ...zap.Field) error {
	delay := r.baseDelay
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		r.logger.Warn(op+" failed", append(fields, zap.Error(err), zap.Int("attempt", attempt))...)
		if attempt > r.maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}
