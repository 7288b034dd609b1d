package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/askdb/askdb/pkg/metrics"
)

func serveMCP(logger *zap.Logger, reqBody, respBody string) *httptest.ResponseRecorder {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(respBody))
	})
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(reqBody))
	rec := httptest.NewRecorder()
	MCPRequestLogger(logger)(handler).ServeHTTP(rec, req)
	return rec
}

func TestMCPRequestLogger(t *testing.T) {
	t.Run("logs successful tool call", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		before := testutil.ToFloat64(metrics.MCPToolCallsTotal.WithLabelValues("ask", "success"))

		serveMCP(zap.New(core),
			`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"ask","arguments":{"question":"задачи","user_id":1}}}`,
			`{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"{}"}]}}`)

		require.Equal(t, 2, logs.Len())
		request := logs.All()[0]
		assert.Equal(t, "MCP request", request.Message)
		assert.Equal(t, "tools/call", request.ContextMap()["method"])
		assert.Equal(t, "ask", request.ContextMap()["tool"])

		response := logs.All()[1]
		assert.Equal(t, "MCP response", response.Message)
		assert.Equal(t, "success", response.ContextMap()["outcome"])
		assert.NotNil(t, response.ContextMap()["duration"])

		after := testutil.ToFloat64(metrics.MCPToolCallsTotal.WithLabelValues("ask", "success"))
		assert.Equal(t, before+1, after)
	})

	t.Run("tool error result", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)

		serveMCP(zap.New(core),
			`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"validate_sql","arguments":{"sql":"DROP TABLE tasks"}}}`,
			`{"jsonrpc":"2.0","id":1,"result":{"isError":true,"content":[{"type":"text","text":"{}"}]}}`)

		require.Equal(t, 2, logs.Len())
		assert.Equal(t, "tool_error", logs.All()[1].ContextMap()["outcome"])
	})

	t.Run("json-rpc error", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)

		serveMCP(zap.New(core),
			`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"ask","arguments":{}}}`,
			`{"jsonrpc":"2.0","id":1,"error":{"code":-32603,"message":"schema unavailable"}}`)

		require.Equal(t, 2, logs.Len())
		response := logs.All()[1]
		assert.Equal(t, "MCP response error", response.Message)
		assert.Equal(t, int64(-32603), response.ContextMap()["error_code"])
		assert.Equal(t, "schema unavailable", response.ContextMap()["error_message"])
	})

	t.Run("non tool methods log only the request", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)

		serveMCP(zap.New(core),
			`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`,
			`{"jsonrpc":"2.0","id":1,"result":{"tools":[]}}`)

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "tools/list", logs.All()[0].ContextMap()["method"])
	})

	t.Run("restores the body for the wrapped handler", func(t *testing.T) {
		body := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`
		var seen string
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			seen = string(b)
			w.WriteHeader(http.StatusOK)
		})
		req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
		MCPRequestLogger(zap.NewNop())(handler).ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, body, seen)
	})

	t.Run("passes through with nil logger", func(t *testing.T) {
		rec := serveMCP(nil, `{invalid json`, `{"error":"bad request"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, `{"error":"bad request"}`, rec.Body.String())
	})

	t.Run("handles malformed and empty bodies", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		serveMCP(zap.New(core), `{invalid json`, `not json`)
		serveMCP(zap.New(core), ``, ``)
		assert.Equal(t, 0, logs.Len())
	})
}

func TestSanitizeArguments(t *testing.T) {
	t.Run("redacts sensitive keywords", func(t *testing.T) {
		result := sanitizeArguments(map[string]any{
			"password":     "secret",
			"api_key":      "abc123",
			"AccessToken":  "xyz789",
			"postgres_dsn": "postgres://u:p@db/app",
			"question":     "visible",
		})

		assert.Equal(t, "[REDACTED]", result["password"])
		assert.Equal(t, "[REDACTED]", result["api_key"])
		assert.Equal(t, "[REDACTED]", result["AccessToken"])
		assert.Equal(t, "[REDACTED]", result["postgres_dsn"])
		assert.Equal(t, "visible", result["question"])
	})

	t.Run("masks literals in sql", func(t *testing.T) {
		result := sanitizeArguments(map[string]any{"sql": "SELECT * FROM users WHERE email = 'a@b.c'"})
		assert.Equal(t, "SELECT * FROM users WHERE email = '?'", result["sql"])
	})

	t.Run("truncates long strings by rune", func(t *testing.T) {
		result := sanitizeArguments(map[string]any{"question": strings.Repeat("я", 250)})

		truncated := result["question"].(string)
		assert.True(t, strings.HasSuffix(truncated, "..."))
		assert.Equal(t, 203, len([]rune(truncated)))
	})

	t.Run("preserves non-string values", func(t *testing.T) {
		result := sanitizeArguments(map[string]any{"user_id": float64(7), "tables": []any{"tasks"}, "none": nil})

		assert.Equal(t, float64(7), result["user_id"])
		assert.Equal(t, []any{"tasks"}, result["tables"])
		assert.Nil(t, result["none"])
	})

	t.Run("handles nil arguments", func(t *testing.T) {
		assert.Nil(t, sanitizeArguments(nil))
	})
}
