package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/askdb/askdb/pkg/mcp"
	"github.com/askdb/askdb/pkg/mcp/tools"
)

func newTestMCPMux() *http.ServeMux {
	logger := zap.NewNop()
	mcpServer := mcp.NewServer("test", "1.0.0", logger)
	tools.RegisterHealthTool(mcpServer.MCP(), "1.0.0", nil)
	tools.RegisterValidateTool(mcpServer.MCP())

	mux := http.NewServeMux()
	NewMCPHandler(mcpServer, logger).RegisterRoutes(mux)
	return mux
}

func postMCP(mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestMCPHandler_ToolsList(t *testing.T) {
	rec := postMCP(newTestMCPMux(), `{"jsonrpc":"2.0","method":"tools/list","id":1}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var response struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	names := map[string]bool{}
	for _, tool := range response.Result.Tools {
		names[tool.Name] = true
	}
	if !names["health"] || !names["validate_sql"] {
		t.Errorf("expected health and validate_sql tools, got %v", names)
	}
}

func TestMCPHandler_ToolCall(t *testing.T) {
	rec := postMCP(newTestMCPMux(),
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"validate_sql","arguments":{"sql":"DELETE FROM tasks"}}}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `\"safe\":false`) {
		t.Errorf("expected an unsafe verdict, got %s", rec.Body.String())
	}
}

func TestMCPHandler_RejectsGet(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestMCPMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mcp", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
