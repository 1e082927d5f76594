package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/termlens/pkg/errors"
)

// WithTimeout runs fn under a context that expires after timeout and returns
// at the deadline even if fn ignores ctx. Running out of time is reported as
// apperrors.ErrTimeout; cancellation of the parent ctx is passed through.
// A non-positive timeout runs fn with ctx unchanged.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeoutCause(ctx, timeout, apperrors.ErrTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil && errors.Is(context.Cause(ctx), apperrors.ErrTimeout) {
		return fmt.Errorf("%s: %w after %v", name, apperrors.ErrTimeout, timeout)
	}
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%s: %w", name, context.Cause(ctx))
	}
	return err
}
