// SPDX-License-Identifier: Apache-2.0
// Package resilience provides retry and timeout boundaries for model calls
// and plugin executors.
package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/errors"
)

// RetryConfig controls retry behavior with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first (must be >= 1).
	MaxAttempts int

	// InitialDelay is the initial backoff delay. Zero retries immediately.
	InitialDelay time.Duration

	// MaxDelay caps the exponential backoff delay.
	MaxDelay time.Duration

	// Multiplier for exponential backoff (default 2.0).
	Multiplier float64

	// IsRecoverable determines if an error should be retried.
	// If nil, all errors except context cancellation are retried.
	IsRecoverable func(error) bool

	// OnRetry is invoked before each retry with the attempt about to run
	// (1-based) and the error that caused it.
	OnRetry func(attempt int, err error)

	// Jitter adds randomness to backoff. 0.1 means ±10%.
	Jitter float64
}

// DefaultRetryConfig returns a sensible default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		Multiplier:    2.0,
		Jitter:        0.1,
		IsRecoverable: isRecoverableDefault,
	}
}

// ImmediateRetryConfig retries up to attempts times with no backoff.
func ImmediateRetryConfig(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts}
}

// WithMaxAttempts returns a new config with MaxAttempts set.
func (rc RetryConfig) WithMaxAttempts(max int) RetryConfig {
	rc.MaxAttempts = max
	return rc
}

// WithIsRecoverable returns a new config with IsRecoverable set.
func (rc RetryConfig) WithIsRecoverable(fn func(error) bool) RetryConfig {
	rc.IsRecoverable = fn
	return rc
}

// WithOnRetry returns a new config with OnRetry set.
func (rc RetryConfig) WithOnRetry(fn func(attempt int, err error)) RetryConfig {
	rc.OnRetry = fn
	return rc
}

// Do executes fn with retry logic, returning the last error if all attempts fail.
func (rc RetryConfig) Do(ctx context.Context, fn func() error) error {
	return rc.DoAttempt(ctx, func(int) error { return fn() })
}

// DoAttempt is Do with the zero-based attempt index passed to fn.
func (rc RetryConfig) DoAttempt(ctx context.Context, fn func(attempt int) error) error {
	if rc.MaxAttempts < 1 {
		rc.MaxAttempts = 1
	}
	if rc.IsRecoverable == nil {
		rc.IsRecoverable = isRecoverableDefault
	}

	var lastErr error
	for attempt := 0; attempt < rc.MaxAttempts; attempt++ {
		if attempt > 0 {
			if rc.OnRetry != nil {
				rc.OnRetry(attempt, lastErr)
			}
			if err := sleep(ctx, calculateBackoff(attempt, rc)); err != nil {
				return errors.New(errors.CodeContextLost, "context canceled during retry", err).
					WithContext("attempt", attempt).
					WithContext("max_attempts", rc.MaxAttempts)
			}
		}

		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if !rc.IsRecoverable(err) {
			return err
		}
	}

	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

// calculateBackoff computes exponential backoff delay with jitter.
func calculateBackoff(attempt int, rc RetryConfig) time.Duration {
	if rc.InitialDelay <= 0 {
		return 0
	}
	if rc.Multiplier == 0 {
		rc.Multiplier = 2.0
	}

	delay := time.Duration(float64(rc.InitialDelay) * math.Pow(rc.Multiplier, float64(attempt-1)))
	if rc.MaxDelay > 0 && delay > rc.MaxDelay {
		delay = rc.MaxDelay
	}

	if rc.Jitter > 0 {
		spread := float64(delay) * rc.Jitter
		delay = time.Duration(float64(delay) + spread*2*(rand.Float64()-0.5))
		if delay < 0 {
			delay = 0
		}
	}

	return delay
}

func isRecoverableDefault(err error) bool {
	if err == nil {
		return false
	}
	return !errors.HasCode(err, errors.CodeContextLost)
}
