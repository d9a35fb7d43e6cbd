package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/hugin/pkg/errors"
)

// Call runs fn under a deadline derived from ctx and returns its result.
// When the deadline fires first, Call returns at once with an error matching
// both apperrors.ErrTimeout and context.DeadlineExceeded; fn is left to
// observe its cancelled context. A timeout of zero or less runs fn directly.
func Call[T any](ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(dctx)
		done <- outcome{v, err}
	}()

	var zero T
	select {
	case o := <-done:
		if o.err != nil && errors.Is(o.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, deadlineError(op, timeout, o.err)
		}
		return o.v, o.err
	case <-dctx.Done():
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%s: %w", op, err)
		}
		return zero, deadlineError(op, timeout, context.DeadlineExceeded)
	}
}

// WithTimeout is Call for functions without a result.
func WithTimeout(ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, timeout, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func deadlineError(op string, timeout time.Duration, cause error) error {
	return fmt.Errorf("%s: %w after %v: %w", op, apperrors.ErrTimeout, timeout, cause)
}
