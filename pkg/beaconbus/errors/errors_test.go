package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindNone, "none"},
		{KindBusUnavailable, "bus_unavailable"},
		{KindTimeout, "timeout"},
		{KindRemoteRejected, "remote_rejected"},
		{KindValidationFailed, "validation_failed"},
		{Kind(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.expected {
				t.Errorf("Kind(%d).String() = %s, want %s", tt.kind, got, tt.expected)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{"nil", nil, KindNone},
		{"bus unavailable", &BusUnavailableError{Scope: "minion"}, KindBusUnavailable},
		{"wrapped bus unavailable", fmt.Errorf("connect: %w", &BusUnavailableError{Scope: "minion"}), KindBusUnavailable},
		{"timeout", &TimeoutError{Operation: "add", Timeout: time.Second}, KindTimeout},
		{"deadline exceeded", context.DeadlineExceeded, KindTimeout},
		{"validation", &ValidationError{Name: "ps", Comment: "bad"}, KindValidationFailed},
		{"rejected", &RemoteRejectedError{Operation: "add"}, KindRemoteRejected},
		{"unknown", errors.New("boom"), KindRemoteRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.expected {
				t.Errorf("KindOf() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Category
	}{
		{"nil error", nil, CategoryPermanent},
		{"bus unavailable", &BusUnavailableError{Scope: "minion"}, CategoryTransient},
		{"timeout", &TimeoutError{Operation: "list", Timeout: time.Second}, CategoryTransient},
		{"validation", &ValidationError{Comment: "bad"}, CategoryPermanent},
		{"categorized", &CategorizedError{Category: CategoryTransient}, CategoryTransient},
		{"unknown", errors.New("unknown"), CategoryPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Categorize(tt.err); got != tt.expected {
				t.Errorf("Categorize() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{&TimeoutError{Operation: "beacon add", Timeout: 60 * time.Second}, "timeout after 60s: beacon add"},
		{&TimeoutError{Operation: "list", Timeout: 250 * time.Millisecond}, "timeout after 0.25s: list"},
		{&ValidationError{Name: "ps", Comment: "processes required"}, "validation error on ps: processes required"},
		{&ValidationError{Comment: "bad"}, "validation error: bad"},
		{&RemoteRejectedError{Operation: "add"}, "add rejected by remote"},
		{&RemoteRejectedError{Operation: "add", Comment: "pillar"}, "add rejected by remote: pillar"},
		{NewCategorized(errors.New("failed"), CategoryTransient, "dial"), "dial: failed (category: transient, attempts: 0)"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.expected {
			t.Errorf("Error() = %q, want %q", got, tt.expected)
		}
	}
}

func TestBusUnavailableError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &BusUnavailableError{Scope: "minion", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the transport error")
	}
}

func TestWithRetryContext(t *testing.T) {
	fast := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, BackoffFactor: 2}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		result := WithRetryContext(context.Background(), fast, func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", Transient(errors.New("refused"), "dial")
			}
			return "ok", nil
		})

		if result.Err != nil {
			t.Fatalf("unexpected error: %v", result.Err)
		}
		if result.Value != "ok" || result.Attempts != 3 {
			t.Errorf("got value=%q attempts=%d", result.Value, result.Attempts)
		}
	})

	t.Run("stops on permanent error", func(t *testing.T) {
		calls := 0
		result := WithRetryContext(context.Background(), fast, func(context.Context) (int, error) {
			calls++
			return 0, errors.New("permanent")
		})

		if result.Err == nil || calls != 1 {
			t.Errorf("expected single failed attempt, got calls=%d err=%v", calls, result.Err)
		}
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		result := WithRetryContext(context.Background(), fast, func(context.Context) (int, error) {
			return 0, &BusUnavailableError{Scope: "minion"}
		})

		var catErr *CategorizedError
		if !errors.As(result.Err, &catErr) {
			t.Fatalf("expected CategorizedError, got %T", result.Err)
		}
		if catErr.Context != "max retries exceeded" || result.Attempts != 3 {
			t.Errorf("got context=%q attempts=%d", catErr.Context, result.Attempts)
		}
		if KindOf(result.Err) != KindBusUnavailable {
			t.Errorf("expected bus_unavailable kind to survive wrapping, got %s", KindOf(result.Err))
		}
	})

	t.Run("respects cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result := WithRetryContext(ctx, fast, func(context.Context) (int, error) {
			t.Fatal("fn must not run with a cancelled context")
			return 0, nil
		})
		if !errors.Is(result.Err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", result.Err)
		}
	})
}
