package tools

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/askdb/askdb/pkg/logging"
	"github.com/askdb/askdb/pkg/models"
	"github.com/askdb/askdb/pkg/services"
)

// AskToolDeps contains dependencies for the ask tool.
type AskToolDeps struct {
	AskService services.AskService
	Logger     *zap.Logger
}

// RegisterAskTool registers the natural-language question tool.
func RegisterAskTool(s *server.MCPServer, deps *AskToolDeps) {
	tool := mcp.NewTool(
		"ask",
		mcp.WithDescription(
			"Answer a natural-language question (Russian or English) about the business database. "+
				"Generates a single read-only SELECT, scopes it to the caller's company and runs it. "+
				"Returns the SQL, the rows and whether the question needs clarification.",
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("The question, e.g. \"Все задачи за сентябрь 2025\""),
		),
		mcp.WithNumber(
			"user_id",
			mcp.Required(),
			mcp.Description("ID of the user asking; company and department are looked up when omitted"),
		),
		mcp.WithNumber("company_id", mcp.Description("Restrict results to this company")),
		mcp.WithNumber("department_id", mcp.Description("Department of the caller")),
		mcp.WithString("role", mcp.Description("Role of the caller")),
		mcp.WithNumber(
			"limit",
			mcp.Description(fmt.Sprintf("Maximum rows to return (%d-%d)", models.MinQueryLimit, models.MaxQueryLimit)),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		askReq, errResult := parseAskRequest(req)
		if errResult != nil {
			return errResult, nil
		}

		resp, err := deps.AskService.Ask(ctx, askReq)
		if err != nil {
			if result, ok := errorResultFor(err); ok {
				return result, nil
			}
			deps.Logger.Error("ask tool failed", zap.String("error", logging.SanitizeError(err)))
			return nil, fmt.Errorf("ask failed: %s", logging.SanitizeError(err))
		}
		return jsonResult(resp)
	})
}

func parseAskRequest(req mcp.CallToolRequest) (models.AskRequest, *mcp.CallToolResult) {
	var out models.AskRequest

	question, err := req.RequireString("question")
	if err != nil {
		return out, NewErrorResult(CodeInvalidRequest, "question is required")
	}
	out.Question = question

	args := req.GetArguments()
	userID, ok, err := optionalInt64(args, "user_id")
	if err != nil || !ok || userID <= 0 {
		return out, NewErrorResult(CodeInvalidRequest, "user_id must be a positive integer")
	}
	out.Identity.UserID = userID

	for key, dst := range map[string]**int64{
		"company_id":    &out.Identity.CompanyID,
		"department_id": &out.Identity.DepartmentID,
	} {
		v, ok, err := optionalInt64(args, key)
		if err != nil {
			return out, NewErrorResult(CodeInvalidRequest, key+" must be an integer")
		}
		if ok {
			*dst = &v
		}
	}

	if role := req.GetString("role", ""); role != "" {
		out.Identity.Role = &role
	}

	limit, ok, err := optionalInt64(args, "limit")
	if err != nil {
		return out, NewErrorResult(CodeInvalidRequest, "limit must be an integer")
	}
	if ok {
		out.Limit = int(limit)
	}
	return out, nil
}

// optionalInt64 reads an integral argument that JSON may deliver as a number or a string.
func optionalInt64(args map[string]any, key string) (int64, bool, error) {
	raw, present := args[key]
	if !present || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) || math.Abs(v) > math.MaxInt64/2 {
			return 0, false, fmt.Errorf("%s is not an integer", key)
		}
		return int64(v), true, nil
	case int:
		return int64(v), true, nil
	case int64:
		return v, true, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("%s is not an integer", key)
		}
		return n, true, nil
	default:
		return 0, false, fmt.Errorf("%s is not an integer", key)
	}
}
