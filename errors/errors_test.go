package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			result := test.class.String()
			if result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"connection lost", ErrConnectionLost, true},
		{"port unavailable", ErrPortUnavailable, true},
		{"rate limited", ErrRateLimited, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, true},
		{"malformed frame", ErrDecodeMalformed, false},
		{"storage full", ErrStorageFull, false},
		{"timeout in message", fmt.Errorf("operation timeout occurred"), true},
		{"network error", fmt.Errorf("network connection failed"), true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsTransient(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"malformed frame", ErrDecodeMalformed, true},
		{"length overflow", ErrLengthOverflow, true},
		{"unknown marker", ErrUnknownMarker, true},
		{"wrapped malformed", fmt.Errorf("decode: %w", ErrDecodeMalformed), true},
		{"classified invalid", &ClassifiedError{Class: ErrorInvalid, Err: fmt.Errorf("test")}, true},
		{"connection lost", ErrConnectionLost, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsInvalid(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"invalid config", ErrInvalidConfig, true},
		{"missing config", ErrMissingConfig, true},
		{"storage full", ErrStorageFull, true},
		{"resource exhausted", ErrResourceExhausted, true},
		{"disk full message", fmt.Errorf("write: disk full"), true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, true},
		{"port closed", ErrPortClosed, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsFatal(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestWrapFormat(t *testing.T) {
	base := errors.New("boom")
	wrapped := Wrap(base, "Extractor", "Feed", "header parse")

	want := "Extractor.Feed: header parse failed: boom"
	if wrapped.Error() != want {
		t.Errorf("expected %q, got %q", want, wrapped.Error())
	}
	if !errors.Is(wrapped, base) {
		t.Error("wrapped error should match the base error with errors.Is")
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	if Wrap(nil, "C", "M", "a") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if WrapTransient(nil, "C", "M", "a") != nil {
		t.Error("WrapTransient(nil) should return nil")
	}
	if WrapInvalid(nil, "C", "M", "a") != nil {
		t.Error("WrapInvalid(nil) should return nil")
	}
	if WrapFatal(nil, "C", "M", "a") != nil {
		t.Error("WrapFatal(nil) should return nil")
	}
}

func TestClassificationPreservedThroughWrap(t *testing.T) {
	err := WrapInvalid(ErrLengthOverflow, "Extractor", "Feed", "length check")

	if !IsInvalid(err) {
		t.Error("classification should survive wrapping")
	}
	if !errors.Is(err, ErrLengthOverflow) {
		t.Error("sentinel should survive wrapping")
	}

	var ce *ClassifiedError
	if !errors.As(err, &ce) {
		t.Fatal("expected a ClassifiedError in the chain")
	}
	if ce.Component != "Extractor" {
		t.Errorf("expected component Extractor, got %s", ce.Component)
	}
	if ce.Operation != "Feed" {
		t.Errorf("expected operation Feed, got %s", ce.Operation)
	}
	if !strings.Contains(ce.Error(), "length check failed") {
		t.Errorf("message should carry the action, got %q", ce.Error())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"nil", nil, ErrorTransient},
		{"transient", ErrConnectionTimeout, ErrorTransient},
		{"invalid", ErrUnknownMarker, ErrorInvalid},
		{"fatal", ErrStorageFull, ErrorFatal},
		{"unknown defaults transient", errors.New("mystery"), ErrorTransient},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Classify(test.err); got != test.expected {
				t.Errorf("expected %v, got %v", test.expected, got)
			}
		})
	}
}

func TestRetryConfigShouldRetry(t *testing.T) {
	cfg := DefaultRetryConfig()

	if cfg.ShouldRetry(nil, 0) {
		t.Error("nil error should not retry")
	}
	if !cfg.ShouldRetry(ErrConnectionTimeout, 0) {
		t.Error("transient error below max attempts should retry")
	}
	if cfg.ShouldRetry(ErrConnectionTimeout, cfg.MaxRetries) {
		t.Error("should not retry at max attempts")
	}
	if cfg.ShouldRetry(ErrDecodeMalformed, 0) {
		t.Error("invalid errors should never retry")
	}

	scoped := cfg
	scoped.RetryableErrors = []error{ErrPortUnavailable}
	if scoped.ShouldRetry(ErrConnectionTimeout, 0) {
		t.Error("scoped retry list should exclude other transient errors")
	}
	if !scoped.ShouldRetry(ErrPortUnavailable, 0) {
		t.Error("scoped retry list should include the listed error")
	}
}

func TestRetryConfigBackoffDelay(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:    5,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      1 * time.Second,
		BackoffFactor: 2.0,
	}

	if d := cfg.BackoffDelay(0); d != 100*time.Millisecond {
		t.Errorf("attempt 0: expected 100ms, got %v", d)
	}
	if d := cfg.BackoffDelay(1); d != 200*time.Millisecond {
		t.Errorf("attempt 1: expected 200ms, got %v", d)
	}
	if d := cfg.BackoffDelay(10); d != 1*time.Second {
		t.Errorf("attempt 10: expected cap at 1s, got %v", d)
	}
}

func TestToRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	rc := cfg.ToRetryConfig()

	if rc.MaxAttempts != cfg.MaxRetries+1 {
		t.Errorf("expected %d total attempts, got %d", cfg.MaxRetries+1, rc.MaxAttempts)
	}
	if !rc.AddJitter {
		t.Error("jitter should be enabled by default")
	}
}
