package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/askdb/askdb/pkg/mcp"
	"github.com/askdb/askdb/pkg/middleware"
)

// MCPHandler serves the MCP tools over streamable HTTP.
type MCPHandler struct {
	transport http.Handler
	logger    *zap.Logger
}

// NewMCPHandler creates a new MCP handler from an MCP server.
func NewMCPHandler(mcpServer *mcp.Server, logger *zap.Logger) *MCPHandler {
	return &MCPHandler{
		transport: mcpServer.NewStreamableHTTPServer(),
		logger:    logger,
	}
}

// RegisterRoutes registers POST /mcp. Tool calls are logged and counted
// before reaching the transport.
func (h *MCPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("POST /mcp", middleware.MCPRequestLogger(h.logger)(h.transport))
}
