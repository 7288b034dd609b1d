package tools

import (
	"context"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/askdb/askdb/pkg/logging"
)

// SchemaDescriber is the part of the catalog the describe_schema tool reads.
type SchemaDescriber interface {
	SchemaProbe
	ResolveTable(ctx context.Context, name string) (string, bool)
	Describe(ctx context.Context, tables []string) []string
}

// SchemaToolDeps contains dependencies for the schema tool.
type SchemaToolDeps struct {
	Catalog SchemaDescriber
	Logger  *zap.Logger
}

type describeResult struct {
	Tables        []string `json:"tables"`
	Lines         []string `json:"lines"`
	UnknownTables []string `json:"unknown_tables,omitempty"`
}

// RegisterSchemaTool registers describe_schema, which returns the catalog
// snippets the generator sees.
func RegisterSchemaTool(s *server.MCPServer, deps *SchemaToolDeps) {
	tool := mcp.NewTool(
		"describe_schema",
		mcp.WithDescription(
			"Describe the database schema as compact lines: \"table name(col:type, ...)\" per table "+
				"and \"fk child.col -> parent.col\" per foreign key. "+
				"Pass tables to restrict the output to those tables and the foreign keys between them.",
		),
		mcp.WithArray(
			"tables",
			mcp.Description("Optional table names; names match case-insensitively"),
			mcp.WithStringItems(),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := deps.Catalog.EnsureLoaded(ctx); err != nil {
			deps.Logger.Warn("describe_schema: catalog unavailable", zap.String("error", logging.SanitizeError(err)))
			return NewErrorResult(CodeSchemaUnavailable, logging.SanitizeError(err)), nil
		}

		requested := req.GetStringSlice("tables", nil)
		if len(requested) == 0 {
			all := deps.Catalog.TableNames(ctx)
			return jsonResult(describeResult{
				Tables: all,
				Lines:  deps.Catalog.Describe(ctx, all),
			})
		}

		var result describeResult
		for _, name := range requested {
			resolved, ok := deps.Catalog.ResolveTable(ctx, name)
			if !ok {
				result.UnknownTables = append(result.UnknownTables, name)
				continue
			}
			if !slices.Contains(result.Tables, resolved) {
				result.Tables = append(result.Tables, resolved)
			}
		}
		if len(result.Tables) == 0 {
			return NewErrorResultWithDetails(CodeInvalidRequest, "none of the requested tables exist",
				map[string]any{"unknown_tables": result.UnknownTables}), nil
		}
		result.Lines = deps.Catalog.Describe(ctx, result.Tables)
		return jsonResult(result)
	})
}
