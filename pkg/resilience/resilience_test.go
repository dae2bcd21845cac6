// SPDX-License-Identifier: Apache-2.0
package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	merrors "github.com/zeeman-effect/maiar-ai-sub000/pkg/errors"
)

func TestRetrySuccess(t *testing.T) {
	attempts := 0
	config := ImmediateRetryConfig(3)
	err := config.Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected success, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	config := ImmediateRetryConfig(2)
	err := config.Do(context.Background(), func() error {
		attempts++
		return errors.New("always fails")
	})

	if err == nil || err.Error() != "always fails" {
		t.Errorf("expected last error after max attempts, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestRetryNonRecoverable(t *testing.T) {
	attempts := 0
	config := ImmediateRetryConfig(5).WithIsRecoverable(func(error) bool { return false })
	err := config.Do(context.Background(), func() error {
		attempts++
		return errors.New("non-recoverable error")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt for non-recoverable error, got %d", attempts)
	}
}

func TestRetryOnRetryHook(t *testing.T) {
	var seen []int
	config := ImmediateRetryConfig(3).WithOnRetry(func(attempt int, err error) {
		if err == nil {
			t.Errorf("expected previous error on retry %d", attempt)
		}
		seen = append(seen, attempt)
	})
	_ = config.DoAttempt(context.Background(), func(attempt int) error {
		return errors.New("fail")
	})
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("unexpected retry hook calls: %v", seen)
	}
}

func TestRetryContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := DefaultRetryConfig().WithMaxAttempts(5)
	attempts := 0
	err := config.Do(ctx, func() error {
		attempts++
		cancel()
		return errors.New("fail")
	})
	if !merrors.HasCode(err, merrors.CodeContextLost) {
		t.Fatalf("expected context lost error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestWithTimeoutExceeded(t *testing.T) {
	err := WithTimeout(context.Background(), TimeoutConfig{Duration: 20 * time.Millisecond}, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !merrors.HasCode(err, merrors.CodeTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestWithTimeoutResultPassThrough(t *testing.T) {
	value, err := WithTimeoutResult(context.Background(), TimeoutConfig{Duration: time.Second}, func(context.Context) (string, error) {
		return "done", nil
	})
	if err != nil || value != "done" {
		t.Fatalf("expected done, got %q, %v", value, err)
	}

	value, err = WithTimeoutResult(context.Background(), TimeoutConfig{}, func(context.Context) (string, error) {
		return "unbounded", nil
	})
	if err != nil || value != "unbounded" {
		t.Fatalf("expected unbounded, got %q, %v", value, err)
	}
}
