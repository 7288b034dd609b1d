package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestNewAnthropicClient_Validation(t *testing.T) {
	if _, err := NewAnthropicClient(&Config{APIKey: "k"}, zap.NewNop()); err == nil {
		t.Error("expected error without a model")
	}
	if _, err := NewAnthropicClient(&Config{Model: "claude-3-5-haiku-latest"}, zap.NewNop()); err == nil {
		t.Error("expected error without an api key")
	}
}

func TestAnthropicClient_GenerateResponse(t *testing.T) {
	var (
		gotAPIKey    string
		gotRequestID string
		gotBody      struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			System    string `json:"system"`
		}
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			http.NotFound(w, r)
			return
		}
		gotAPIKey = r.Header.Get("x-api-key")
		gotRequestID = r.Header.Get(requestIDHeader)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-haiku-latest",
			"content": [
				{"type": "text", "text": "{\"sql\": "},
				{"type": "text", "text": "\"SELECT 1\"}"}
			],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 20, "output_tokens": 8}
		}`))
	}))
	defer server.Close()

	c, err := NewAnthropicClient(&Config{Endpoint: server.URL, Model: "claude-3-5-haiku-latest", APIKey: "secret"}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := c.GenerateResponse(WithRequestID(context.Background(), "req-7"), "count tasks", "you write SQL", 0.1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Content != `{"sql": "SELECT 1"}` {
		t.Errorf("expected joined text blocks, got %q", result.Content)
	}
	if result.TotalTokens != 28 {
		t.Errorf("expected 28 total tokens, got %d", result.TotalTokens)
	}
	if gotAPIKey != "secret" || gotRequestID != "req-7" {
		t.Errorf("unexpected headers key=%q request_id=%q", gotAPIKey, gotRequestID)
	}
	if gotBody.System != "you write SQL" || gotBody.MaxTokens != DefaultAnthropicMaxTokens {
		t.Errorf("unexpected request body %+v", gotBody)
	}
}

func TestAnthropicClient_GenerateResponse_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))
	defer server.Close()

	c, err := NewAnthropicClient(&Config{Endpoint: server.URL, Model: "claude-3-5-haiku-latest", APIKey: "secret"}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = c.GenerateResponse(context.Background(), "q", "sys", 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if GetErrorType(err) != ErrorTypeEndpoint || !IsRetryable(err) {
		t.Errorf("expected retryable endpoint error, got %v", err)
	}
}
