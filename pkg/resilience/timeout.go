// SPDX-License-Identifier: Apache-2.0
package resilience

import (
	"context"
	"time"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/errors"
)

// TimeoutConfig controls timeout behavior.
type TimeoutConfig struct {
	// Duration is the maximum time allowed for the operation. Zero disables the bound.
	Duration time.Duration
}

// WithTimeout executes fn with a timeout boundary. fn receives a context that
// is canceled when the deadline passes; fn may keep running after WithTimeout
// returns if it ignores that context.
// Returns errors.CodeTimeout if the deadline is exceeded.
func WithTimeout(ctx context.Context, config TimeoutConfig, fn func(ctx context.Context) error) error {
	_, err := WithTimeoutResult(ctx, config, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// WithTimeoutResult executes fn with a timeout boundary, returning both result and error.
func WithTimeoutResult[T any](ctx context.Context, config TimeoutConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	if config.Duration <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, config.Duration)
	defer cancel()

	type result struct {
		value T
		err   error
	}

	done := make(chan result, 1)
	go func() {
		value, err := fn(ctx)
		done <- result{value, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		if ctx.Err() == context.DeadlineExceeded {
			return zero, errors.New(errors.CodeTimeout, "operation exceeded timeout", ctx.Err()).
				WithContext("timeout", config.Duration.String()).
				WithRecoverable(true)
		}
		return zero, errors.New(errors.CodeContextLost, "operation canceled", ctx.Err())
	case res := <-done:
		return res.value, res.err
	}
}
