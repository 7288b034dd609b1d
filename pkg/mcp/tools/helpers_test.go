package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"
)

func newTestServer() *server.MCPServer {
	return server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
}

// toolReply is a tools/call response reduced to what tests assert on.
type toolReply struct {
	Text     string
	IsError  bool
	RPCError string
}

// callTool executes an MCP tool via the server's HandleMessage method.
func callTool(t *testing.T, s *server.MCPServer, name string, arguments map[string]any) toolReply {
	t.Helper()

	reqBytes, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "tools/call",
		"id":      1,
		"params": map[string]any{
			"name":      name,
			"arguments": arguments,
		},
	})
	require.NoError(t, err)

	resultBytes, err := json.Marshal(s.HandleMessage(context.Background(), reqBytes))
	require.NoError(t, err)

	var response struct {
		Result *struct {
			IsError bool `json:"isError"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resultBytes, &response))

	if response.Error != nil {
		return toolReply{RPCError: response.Error.Message}
	}
	require.NotNil(t, response.Result)
	require.NotEmpty(t, response.Result.Content)
	return toolReply{Text: response.Result.Content[0].Text, IsError: response.Result.IsError}
}

// listTools returns the names of the tools registered on s.
func listTools(t *testing.T, s *server.MCPServer) []string {
	t.Helper()

	resultBytes, err := json.Marshal(s.HandleMessage(context.Background(),
		[]byte(`{"jsonrpc":"2.0","method":"tools/list","id":1}`)))
	require.NoError(t, err)

	var response struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(resultBytes, &response))

	var names []string
	for _, tool := range response.Result.Tools {
		names = append(names, tool.Name)
	}
	return names
}

func decodeReply[T any](t *testing.T, reply toolReply) T {
	t.Helper()
	require.Empty(t, reply.RPCError)
	var out T
	require.NoError(t, json.NewDecoder(strings.NewReader(reply.Text)).Decode(&out))
	return out
}

type stubCatalog struct {
	loadErr error
	tables  []string
	lines   map[string]string
}

func (c *stubCatalog) EnsureLoaded(context.Context) error { return c.loadErr }

func (c *stubCatalog) TableNames(context.Context) []string { return c.tables }

func (c *stubCatalog) ResolveTable(_ context.Context, name string) (string, bool) {
	for _, table := range c.tables {
		if strings.EqualFold(table, name) {
			return table, true
		}
	}
	return "", false
}

func (c *stubCatalog) Describe(_ context.Context, tables []string) []string {
	var out []string
	for _, table := range tables {
		out = append(out, c.lines[table])
	}
	return out
}

var errBoom = errors.New("boom")
