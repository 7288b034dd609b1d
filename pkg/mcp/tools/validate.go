package tools

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/askdb/askdb/pkg/apperrors"
	sqlutil "github.com/askdb/askdb/pkg/sql"
)

type validateResult struct {
	Safe          bool   `json:"safe"`
	StatementType string `json:"statement_type"`
	Reason        string `json:"reason,omitempty"`
}

// RegisterValidateTool registers validate_sql, which runs the read-only
// safety check without executing anything.
func RegisterValidateTool(s *server.MCPServer) {
	tool := mcp.NewTool(
		"validate_sql",
		mcp.WithDescription(
			"Check whether a SQL text would be accepted for execution: exactly one SELECT statement "+
				"with no data-modifying parts. Nothing is executed.",
		),
		mcp.WithString("sql", mcp.Required(), mcp.Description("The SQL text to check")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sqlText, err := req.RequireString("sql")
		if err != nil {
			return NewErrorResult(CodeInvalidRequest, "sql is required"), nil
		}

		stmtType, _ := sqlutil.Classify(sqlText)
		result := validateResult{Safe: true, StatementType: string(stmtType)}

		if err := sqlutil.ValidateSelect(sqlText); err != nil {
			result.Safe = false
			var unsafeErr *apperrors.UnsafeSQLError
			if errors.As(err, &unsafeErr) {
				result.Reason = unsafeErr.Reason
			} else {
				result.Reason = err.Error()
			}
		}
		return jsonResult(result)
	})
}
