package tools

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/askdb/askdb/pkg/apperrors"
	"github.com/askdb/askdb/pkg/logging"
)

// Error codes carried in structured tool errors.
const (
	CodeInvalidRequest    = "invalid_request"
	CodeUnknownUser       = "unknown_user"
	CodeUnsafeSQL         = "unsafe_sql"
	CodeExecutionError    = "execution_error"
	CodeSchemaEmpty       = "schema_empty"
	CodeSchemaUnavailable = "schema_unavailable"
)

// ErrorResponse is the JSON body of a tool result with IsError set.
// Callers see it as tool output, so the model can read the reason and retry.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use it for errors the caller can act on; infrastructure failures are
// returned as Go errors instead.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	jsonBytes, _ := json.Marshal(ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	})
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// errorResultFor maps an ask-flow error onto a structured tool error.
// It reports false for errors that are not the caller's to fix.
func errorResultFor(err error) (*mcp.CallToolResult, bool) {
	var (
		unsafeErr *apperrors.UnsafeSQLError
		execErr   *apperrors.ExecutionError
	)

	switch {
	case errors.Is(err, apperrors.ErrInvalidRequest):
		reason := strings.TrimPrefix(err.Error(), apperrors.ErrInvalidRequest.Error()+": ")
		return NewErrorResult(CodeInvalidRequest, reason), true
	case errors.Is(err, apperrors.ErrUnknownUser):
		return NewErrorResult(CodeUnknownUser, "unknown user_id"), true
	case errors.As(err, &unsafeErr):
		reason := unsafeErr.Reason
		if reason == "" {
			reason = "unsafe or empty SQL"
		}
		return NewErrorResultWithDetails(CodeUnsafeSQL, reason, map[string]string{"sql": unsafeErr.SQL}), true
	case errors.As(err, &execErr):
		return NewErrorResultWithDetails(CodeExecutionError, logging.SanitizeError(execErr.Cause),
			map[string]string{"sql": execErr.SQL}), true
	case errors.Is(err, apperrors.ErrSchemaEmpty):
		return NewErrorResult(CodeSchemaEmpty, "the database schema has no tables"), true
	case errors.Is(err, apperrors.ErrCatalogLoad):
		return NewErrorResult(CodeSchemaUnavailable, logging.SanitizeError(err)), true
	}
	return nil, false
}

// jsonResult marshals v into a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
