package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestExecuteRetriesTemporaryFailure(t *testing.T) {
	exec := NewExecutor(Config{
		Retry:   RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Multiplier: 2},
		Breaker: BreakerConfig{Disabled: true},
	}, nil)

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "docling.convert", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{
			Retryable:     errors.Is(err, errTemp),
			RecordFailure: true,
		}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(Config{
		Retry:   RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Multiplier: 2},
		Breaker: BreakerConfig{Disabled: true},
	}, nil)

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Execute(context.Background(), "docling.convert", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		Retry: RetryConfig{MaxAttempts: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 2},
		Breaker: BreakerConfig{
			MinRequests:      2,
			FailureRatio:     0.5,
			OpenTimeout:      50 * time.Millisecond,
			HalfOpenMaxCalls: 1,
		},
	}, nil)

	errTemp := errors.New("temporary")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: true,
		}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "docling.convert", func(context.Context) error {
			return errTemp
		}, classifier)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "docling.convert", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
}

func TestDoReturnsValue(t *testing.T) {
	exec := NewExecutor(Config{Retry: RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond}, Breaker: BreakerConfig{Disabled: true}}, nil)

	calls := 0
	got, err := Do(context.Background(), exec, "docling.convert", func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", &net.OpError{Op: "dial", Err: errors.New("connection refused")}
		}
		return "converted", nil
	}, TransientClassifier())
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got != "converted" || calls != 2 {
		t.Fatalf("got %q after %d calls", got, calls)
	}
}

func TestTransientClassifier(t *testing.T) {
	errBusy := errors.New("service busy")
	classify := TransientClassifier(errBusy)

	if c := classify(fmt.Errorf("convert: %w", errBusy)); !c.Retryable {
		t.Fatalf("wrapped sentinel must be retryable")
	}
	if c := classify(context.DeadlineExceeded); c.Retryable || c.RecordFailure {
		t.Fatalf("deadline must not be retried or recorded: %+v", c)
	}
	if c := classify(errors.New("bad request")); c.Retryable || !c.RecordFailure {
		t.Fatalf("unknown errors are permanent failures: %+v", c)
	}
}

func TestEngineConfigNormalizesAttempts(t *testing.T) {
	cfg := EngineConfig(0, 0)
	if cfg.Retry.MaxAttempts != DefaultConfig().Retry.MaxAttempts {
		t.Fatalf("MaxAttempts = %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Breaker.OpenTimeout != DefaultConfig().Breaker.OpenTimeout {
		t.Fatalf("OpenTimeout = %s", cfg.Breaker.OpenTimeout)
	}
	if cfg.Retry.MaxBackoff != 2*time.Second || cfg.Breaker.MinRequests != 5 {
		t.Fatalf("unexpected engine config: %+v", cfg)
	}

	cfg = EngineConfig(1, time.Minute)
	if cfg.Retry.MaxAttempts != 1 || cfg.Breaker.OpenTimeout != time.Minute {
		t.Fatalf("unexpected engine config: %+v", cfg)
	}
}
