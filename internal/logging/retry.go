package logging

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Retrier re-runs idempotent calls on transient failures with exponential backoff.
type Retrier struct {
	Logger         *zap.Logger
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// NewRetrier returns the default policy: three attempts starting at 50ms.
func NewRetrier(logger *zap.Logger) Retrier {
	return Retrier{
		Logger:         logger,
		Attempts:       3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     time.Second,
	}
}

// Do runs fn until it succeeds, fails with a non-transient error, or the
// attempts run out. Any returned error is an *OperationError.
func (r Retrier) Do(ctx context.Context, operation, requestID string, fn func() error) error {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	opLogger := WithOperation(logger, operation, requestID)

	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := r.InitialBackoff

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= r.MaxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !IsTransientError(err) || attempt == attempts-1 {
			return NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return NewOperationError(operation, requestID, err)
}
