package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestWithRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Errorf("expected req-1, got %q", got)
	}

	generated := RequestIDFromContext(WithRequestID(context.Background(), ""))
	if len(generated) != 36 {
		t.Errorf("expected a generated UUID, got %q", generated)
	}

	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty id without one attached, got %q", got)
	}
}

func TestContextAwareTransport(t *testing.T) {
	var received []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = append(received, r.Header.Get(requestIDHeader))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newHTTPClient()
	for _, ctx := range []context.Context{WithRequestID(context.Background(), "abc"), context.Background()} {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
		if err != nil {
			t.Fatalf("failed to create request: %v", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
	}

	if len(received) != 2 || received[0] != "abc" || received[1] != "" {
		t.Errorf("unexpected headers %q", received)
	}
}

func TestNewClient_RequiresModel(t *testing.T) {
	if _, err := NewClient(&Config{APIKey: "k"}, zap.NewNop()); err == nil {
		t.Error("expected error without a model")
	}

	c, err := NewClient(&Config{Model: "gpt-4o-mini"}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.GetEndpoint() != DefaultOpenAIEndpoint {
		t.Errorf("expected default endpoint, got %q", c.GetEndpoint())
	}
}

func TestClient_GenerateResponse(t *testing.T) {
	var (
		gotRequestID string
		gotBody      struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		gotRequestID = r.Header.Get(requestIDHeader)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"sql\": \"SELECT 1\"}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17}
		}`))
	}))
	defer server.Close()

	c, err := NewClient(&Config{Endpoint: server.URL, Model: "gpt-4o-mini", APIKey: "test"}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := WithRequestID(context.Background(), "req-42")
	result, err := c.GenerateResponse(ctx, "how many tasks?", "you write SQL", 0.1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Content != `{"sql": "SELECT 1"}` {
		t.Errorf("unexpected content %q", result.Content)
	}
	if result.PromptTokens != 12 || result.CompletionTokens != 5 || result.TotalTokens != 17 {
		t.Errorf("unexpected usage %+v", result)
	}
	if gotRequestID != "req-42" {
		t.Errorf("expected request id header, got %q", gotRequestID)
	}
	if gotBody.Model != "gpt-4o-mini" || len(gotBody.Messages) != 2 {
		t.Fatalf("unexpected request body %+v", gotBody)
	}
	if gotBody.Messages[0].Role != "system" || gotBody.Messages[0].Content != "you write SQL" {
		t.Errorf("unexpected system message %+v", gotBody.Messages[0])
	}
	if gotBody.Messages[1].Role != "user" || gotBody.Messages[1].Content != "how many tasks?" {
		t.Errorf("unexpected user message %+v", gotBody.Messages[1])
	}
}

func TestClient_GenerateResponse_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantType  ErrorType
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, ErrorTypeAuth, false},
		{"rate limited", http.StatusTooManyRequests, ErrorTypeRateLimited, true},
		{"server error", http.StatusBadGateway, ErrorTypeEndpoint, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error": {"message": "backend said no", "type": "error"}}`))
			}))
			defer server.Close()

			c, err := NewClient(&Config{Endpoint: server.URL, Model: "gpt-4o-mini", APIKey: "test"}, zap.NewNop())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			_, err = c.GenerateResponse(context.Background(), "q", "sys", 0)
			if err == nil {
				t.Fatal("expected error")
			}
			if GetErrorType(err) != tt.wantType {
				t.Errorf("expected %q, got %q (%v)", tt.wantType, GetErrorType(err), err)
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("expected retryable=%v", tt.retryable)
			}
			var llmErr *Error
			if !errors.As(err, &llmErr) || llmErr.Model != "gpt-4o-mini" || llmErr.StatusCode != tt.status {
				t.Errorf("expected model and status on error, got %+v", llmErr)
			}
		})
	}
}

func TestClient_GenerateResponse_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "choices": []}`))
	}))
	defer server.Close()

	c, err := NewClient(&Config{Endpoint: server.URL, Model: "m"}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = c.GenerateResponse(context.Background(), "q", "sys", 0)
	if GetErrorType(err) != ErrorTypeResponse {
		t.Errorf("expected response error, got %v", err)
	}
}

func TestClient_GenerateResponse_JSONMode(t *testing.T) {
	tests := []struct {
		name     string
		jsonMode bool
		want     string
	}{
		{"enabled", true, "json_object"},
		{"disabled", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotBody struct {
				ResponseFormat *struct {
					Type string `json:"type"`
				} `json:"response_format"`
			}
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewDecoder(r.Body).Decode(&gotBody)
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "{}"}, "finish_reason": "length"}]}`))
			}))
			defer server.Close()

			c, err := NewClient(&Config{Endpoint: server.URL, Model: "m", JSONMode: tt.jsonMode}, zap.NewNop())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			result, err := c.GenerateResponse(context.Background(), "q", "sys", 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Content != "{}" {
				t.Errorf("unexpected content %q", result.Content)
			}

			got := ""
			if gotBody.ResponseFormat != nil {
				got = gotBody.ResponseFormat.Type
			}
			if got != tt.want {
				t.Errorf("expected response_format %q, got %q", tt.want, got)
			}
		})
	}
}
