package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func TestError_Error_WithStatusCodeAndModel(t *testing.T) {
	err := &Error{
		Type:       ErrorTypeEndpoint,
		Message:    "server error",
		StatusCode: 503,
		Model:      "gpt-4o-mini",
		Endpoint:   "https://api.openai.com/v1",
	}

	result := err.Error()
	for _, want := range []string{"HTTP 503", "model=gpt-4o-mini", "endpoint=api.openai.com", "server error"} {
		if !strings.Contains(result, want) {
			t.Errorf("expected error message to contain %q, got: %s", want, result)
		}
	}
	// Endpoint is redacted to host only
	if strings.Contains(result, "/v1") {
		t.Errorf("endpoint should be redacted to host only, got: %s", result)
	}
}

func TestError_Error_WithCause(t *testing.T) {
	err := &Error{
		Type:    ErrorTypeEndpoint,
		Message: "connection failed",
		Cause:   errors.New("underlying connection error"),
	}

	if !strings.Contains(err.Error(), "underlying connection error") {
		t.Errorf("expected error message to contain cause, got: %s", err.Error())
	}
}

func TestError_Error_MinimalContext(t *testing.T) {
	err := &Error{
		Type:    ErrorTypeAuth,
		Message: "authentication failed",
	}

	expected := "auth authentication failed"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name               string
		inputError         error
		expectedType       ErrorType
		expectedStatusCode int
		expectedRetryable  bool
	}{
		{
			name:               "503 service unavailable",
			inputError:         errors.New("HTTP 503 Service Unavailable"),
			expectedType:       ErrorTypeEndpoint,
			expectedStatusCode: 503,
			expectedRetryable:  true,
		},
		{
			name:               "429 rate limit",
			inputError:         errors.New("HTTP 429 Too Many Requests"),
			expectedType:       ErrorTypeRateLimited,
			expectedStatusCode: 429,
			expectedRetryable:  true,
		},
		{
			name:               "401 unauthorized",
			inputError:         errors.New("status 401: Unauthorized"),
			expectedType:       ErrorTypeAuth,
			expectedStatusCode: 401,
		},
		{
			name:         "model not found",
			inputError:   errors.New("The model `gpt-9` does not exist"),
			expectedType: ErrorTypeModel,
		},
		{
			name:              "connection refused",
			inputError:        errors.New("dial tcp 127.0.0.1:1: connect: connection refused"),
			expectedType:      ErrorTypeEndpoint,
			expectedRetryable: true,
		},
		{
			name:              "deadline exceeded",
			inputError:        fmt.Errorf("post: %w", context.DeadlineExceeded),
			expectedType:      ErrorTypeTimeout,
			expectedRetryable: true,
		},
		{
			name:         "context canceled",
			inputError:   fmt.Errorf("post: %w", context.Canceled),
			expectedType: ErrorTypeUnknown,
		},
		{
			name:               "openai api error carries status",
			inputError:         &openai.APIError{HTTPStatusCode: 502, Message: "bad gateway"},
			expectedType:       ErrorTypeEndpoint,
			expectedStatusCode: 502,
			expectedRetryable:  true,
		},
		{
			name:         "unknown",
			inputError:   errors.New("something odd"),
			expectedType: ErrorTypeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ClassifyError(tt.inputError)
			if result.Type != tt.expectedType {
				t.Errorf("expected type %q, got %q", tt.expectedType, result.Type)
			}
			if result.StatusCode != tt.expectedStatusCode {
				t.Errorf("expected status %d, got %d", tt.expectedStatusCode, result.StatusCode)
			}
			if result.Retryable != tt.expectedRetryable {
				t.Errorf("expected retryable=%v, got %v", tt.expectedRetryable, result.Retryable)
			}
			if !errors.Is(result, tt.inputError) {
				t.Errorf("expected classified error to wrap the input")
			}
		})
	}
}

func TestClassifyError_Nil(t *testing.T) {
	if ClassifyError(nil) != nil {
		t.Error("expected nil for nil input")
	}
}

func TestClassifyError_PreservesExistingError(t *testing.T) {
	original := NewError(ErrorTypeAuth, "bad key", false, nil)
	wrapped := fmt.Errorf("generate: %w", original)

	if got := ClassifyError(wrapped); got != original {
		t.Errorf("expected the existing *Error to be returned")
	}
}

func TestIsRetryableAndGetErrorType(t *testing.T) {
	err := fmt.Errorf("call: %w", NewError(ErrorTypeTimeout, "request timeout", true, nil))
	if !IsRetryable(err) {
		t.Error("expected retryable")
	}
	if GetErrorType(err) != ErrorTypeTimeout {
		t.Errorf("expected timeout, got %q", GetErrorType(err))
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("plain errors are not retryable")
	}
	if GetErrorType(errors.New("plain")) != ErrorTypeUnknown {
		t.Error("plain errors have unknown type")
	}
}
