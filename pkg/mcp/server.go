// Package mcp exposes the question pipeline as Model Context Protocol tools.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/askdb/askdb/pkg/mcp/tools"
	"github.com/askdb/askdb/pkg/services"
)

const instructions = `askdb answers questions about a PostgreSQL database with read-only SQL.
Call describe_schema to see tables, ask to run a question for a user, and validate_sql to
check a statement before suggesting it. Every executed query is a single SELECT scoped to
the user's company with a row limit.`

// Server holds the MCP server and the logger shared by its tools.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates an MCP server with tool support. Panics inside tool handlers
// are recovered and reported as tool errors.
func NewServer(name, version string, logger *zap.Logger) *Server {
	return &Server{
		mcp: server.NewMCPServer(name, version,
			server.WithToolCapabilities(true),
			server.WithInstructions(instructions),
			server.WithRecovery(),
		),
		logger: logger.Named("mcp"),
	}
}

// MCP returns the underlying server for tool registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// NewStreamableHTTPServer returns a stateless HTTP transport. The caller mounts it.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s.mcp, server.WithStateLess(true))
}

// RegisterTool adds a single tool.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}

// RegisterTools adds health, ask, describe_schema and validate_sql.
func (s *Server) RegisterTools(version string, catalog tools.SchemaDescriber, askService services.AskService) {
	tools.RegisterHealthTool(s.mcp, version, catalog)
	tools.RegisterAskTool(s.mcp, &tools.AskToolDeps{AskService: askService, Logger: s.logger})
	tools.RegisterSchemaTool(s.mcp, &tools.SchemaToolDeps{Catalog: catalog, Logger: s.logger})
	tools.RegisterValidateTool(s.mcp)
	s.logger.Debug("MCP tools registered", zap.String("version", version))
}
