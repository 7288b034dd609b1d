package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/askdb/askdb/pkg/llm"
)

func fastConfig(maxRetries int) *Config {
	return &Config{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxRetries != 5 {
		t.Errorf("expected MaxRetries=5, got %d", cfg.MaxRetries)
	}
	if cfg.InitialDelay != 200*time.Millisecond {
		t.Errorf("expected InitialDelay=200ms, got %v", cfg.InitialDelay)
	}
	if cfg.MaxDelay != 5*time.Second {
		t.Errorf("expected MaxDelay=5s, got %v", cfg.MaxDelay)
	}
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	callCount := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		callCount++
		if callCount < 3 {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error after retries, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestDo_MaxRetriesExhausted(t *testing.T) {
	expectedErr := errors.New("persistent error")
	callCount := 0
	err := Do(context.Background(), fastConfig(2), func() error {
		callCount++
		return expectedErr
	})

	if !errors.Is(err, expectedErr) {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
	// initial attempt + 2 retries
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: time.Second, Multiplier: 2.0}

	callCount := 0
	start := time.Now()
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, cfg, func() error {
		callCount++
		return errors.New("error")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("expected quick cancellation, took %v", elapsed)
	}
}

func TestDo_NilConfigUsesDefaults(t *testing.T) {
	callCount := 0
	err := Do(context.Background(), nil, func() error {
		callCount++
		return nil
	})
	if err != nil || callCount != 1 {
		t.Errorf("expected one successful call, got %d calls and %v", callCount, err)
	}
}

func TestDoWithResult(t *testing.T) {
	callCount := 0
	result, err := DoWithResult(context.Background(), fastConfig(3), func() (string, error) {
		callCount++
		if callCount < 2 {
			return "", errors.New("connection refused")
		}
		return "connected", nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result != "connected" {
		t.Errorf("expected result 'connected', got %q", result)
	}
	if callCount != 2 {
		t.Errorf("expected 2 calls, got %d", callCount)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp 127.0.0.1:5432: connect: Connection Refused"), true},
		{"connection reset", errors.New("connection reset by peer"), true},
		{"no such host", errors.New("lookup db: no such host"), true},
		{"i/o timeout", errors.New("i/o timeout"), true},
		{"starting up", errors.New("FATAL: the database system is starting up (SQLSTATE 57P03)"), true},
		{"too many clients", errors.New("FATAL: sorry, too many clients already (SQLSTATE 53300)"), true},
		{"wrapped", fmt.Errorf("failed to ping database: %w", errors.New("connection refused")), true},
		{"bad password", errors.New("FATAL: password authentication failed for user \"app\" (SQLSTATE 28P01)"), false},
		{"unknown database", errors.New("FATAL: database \"nope\" does not exist (SQLSTATE 3D000)"), false},
		{"syntax error", errors.New("syntax error at or near \"SELEC\""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.expected {
				t.Errorf("IsRetryable(%v) = %v, expected %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestIsRetryable_LLMError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"retryable endpoint error", llm.NewError(llm.ErrorTypeEndpoint, "server error", true, errors.New("HTTP 503")), true},
		{"auth error", llm.NewError(llm.ErrorTypeAuth, "authentication failed", false, errors.New("HTTP 401")), false},
		{"wrapped auth error with misleading text", fmt.Errorf("timeout budget: %w",
			llm.NewError(llm.ErrorTypeAuth, "authentication failed", false, nil)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.expected {
				t.Errorf("IsRetryable(%v) = %v, expected %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestDoIfRetryable(t *testing.T) {
	t.Run("retries transient errors", func(t *testing.T) {
		callCount := 0
		err := DoIfRetryable(context.Background(), fastConfig(3), func() error {
			callCount++
			if callCount < 3 {
				return errors.New("connection refused")
			}
			return nil
		})
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if callCount != 3 {
			t.Errorf("expected 3 calls, got %d", callCount)
		}
	})

	t.Run("returns permanent errors immediately", func(t *testing.T) {
		permanent := errors.New("password authentication failed")
		callCount := 0
		err := DoIfRetryable(context.Background(), fastConfig(3), func() error {
			callCount++
			return permanent
		})
		if !errors.Is(err, permanent) {
			t.Errorf("expected %v, got %v", permanent, err)
		}
		if callCount != 1 {
			t.Errorf("expected 1 call, got %d", callCount)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		callCount := 0
		err := DoIfRetryable(context.Background(), fastConfig(2), func() error {
			callCount++
			return errors.New("connection refused")
		})
		if err == nil {
			t.Error("expected an error")
		}
		if callCount != 3 {
			t.Errorf("expected 3 calls, got %d", callCount)
		}
	})
}
