package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// SchemaProbe reports whether the schema catalog is usable.
type SchemaProbe interface {
	EnsureLoaded(ctx context.Context) error
	TableNames(ctx context.Context) []string
}

type healthResult struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	SchemaLoaded bool   `json:"schema_loaded"`
	Tables       int    `json:"tables"`
	Error        string `json:"error,omitempty"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool reports the server version and whether the schema catalog loaded.
// A nil probe reports only the version.
func RegisterHealthTool(s *server.MCPServer, version string, probe SchemaProbe) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status, version and schema catalog state"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := healthResult{Status: "ok", Version: version}
		if probe != nil {
			if err := probe.EnsureLoaded(ctx); err != nil {
				result.Status = "degraded"
				result.Error = "schema catalog unavailable"
			} else {
				result.SchemaLoaded = true
				result.Tables = len(probe.TableNames(ctx))
			}
		}
		out, err := jsonResult(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return out, nil
	})
}
