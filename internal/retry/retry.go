// Package retry wraps remote calls with bounded exponential backoff on rate limiting.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roeyazroel/linear-sync/internal/linearapi"
	"github.com/roeyazroel/linear-sync/internal/logger"
)

const (
	// DefaultMaxAttempts is the total number of calls made before giving up.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the wait before the second attempt.
	DefaultBaseDelay = 500 * time.Millisecond
)

// ErrRetriesExhausted is matched by the error returned once every attempt was rate limited.
var ErrRetriesExhausted = errors.New("retries exhausted")

// ExhaustedError reports that every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

// Unwrap exposes the last underlying error.
func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Is lets errors.Is(err, ErrRetriesExhausted) match.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

// Executor retries operations that fail with a retryable error.
// The zero value uses the defaults and retries on linearapi rate limits.
type Executor struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// IsRetryable classifies errors; defaults to linearapi.IsRateLimited.
	IsRetryable func(error) bool
	// Sleep waits between attempts; defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New returns an Executor with the given base delay and default attempts.
func New(baseDelay time.Duration) *Executor {
	return &Executor{MaxAttempts: DefaultMaxAttempts, BaseDelay: baseDelay}
}

func (ex *Executor) maxAttempts() int {
	if ex == nil || ex.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return ex.MaxAttempts
}

func (ex *Executor) baseDelay() time.Duration {
	if ex == nil || ex.BaseDelay <= 0 {
		return DefaultBaseDelay
	}
	return ex.BaseDelay
}

func (ex *Executor) retryable(err error) bool {
	if ex != nil && ex.IsRetryable != nil {
		return ex.IsRetryable(err)
	}
	return linearapi.IsRateLimited(err)
}

func (ex *Executor) sleep(ctx context.Context, d time.Duration) error {
	if ex != nil && ex.Sleep != nil {
		return ex.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

// Delay returns the wait after the given zero-based failed attempt: base * 2^attempt.
func (ex *Executor) Delay(attempt int) time.Duration {
	return ex.baseDelay() << uint(attempt)
}

// Run calls op until it succeeds, fails with a non-retryable error, or
// attempts run out. Non-retryable errors are returned unchanged.
func (ex *Executor) Run(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Do(ctx, ex, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Do is Run for operations that return a value.
func Do[T any](ctx context.Context, ex *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := ex.maxAttempts()

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := ex.Delay(attempt - 1)
			logger.Debug("retry: rate limited, waiting delay=%s attempt=%d/%d", delay, attempt+1, attempts)
			if err := ex.sleep(ctx, delay); err != nil {
				return zero, err
			}
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if !ex.retryable(err) {
			return zero, err
		}
		lastErr = err
	}

	logger.Warning("retry: giving up attempts=%d error=%v", attempts, lastErr)
	return zero, &ExhaustedError{Attempts: attempts, Last: lastErr}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
