// Package sql provides SQL validation and rewriting utilities backed by the PostgreSQL parser.
package sql

import (
	"errors"
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/askdb/askdb/pkg/apperrors"
)

// SQLStatementType represents the type of SQL statement.
type SQLStatementType string

const (
	SQLTypeSelect  SQLStatementType = "SELECT"
	SQLTypeInsert  SQLStatementType = "INSERT"
	SQLTypeUpdate  SQLStatementType = "UPDATE"
	SQLTypeDelete  SQLStatementType = "DELETE"
	SQLTypeCall    SQLStatementType = "CALL"
	SQLTypeDDL     SQLStatementType = "DDL"     // CREATE, ALTER, DROP, TRUNCATE
	SQLTypeUnknown SQLStatementType = "UNKNOWN" // Unrecognized or blocked statement types
)

var (
	// ErrEmptySQL indicates the query has no text or no statements.
	ErrEmptySQL = errors.New("empty SQL")
	// ErrMultipleStatements indicates the query contains multiple SQL statements.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
)

// parseSingle parses sqlText and returns its only statement.
func parseSingle(sqlText string) (*pg_query.ParseResult, *pg_query.Node, error) {
	if strings.TrimSpace(sqlText) == "" {
		return nil, nil, ErrEmptySQL
	}
	tree, err := pg_query.Parse(sqlText)
	if err != nil {
		return nil, nil, fmt.Errorf("parse SQL: %w", err)
	}
	switch len(tree.GetStmts()) {
	case 0:
		return nil, nil, ErrEmptySQL
	case 1:
		return tree, tree.GetStmts()[0].GetStmt(), nil
	default:
		return nil, nil, ErrMultipleStatements
	}
}

// Classify reports the statement type of a single SQL statement.
// Data-modifying CTEs under a SELECT classify as SQLTypeUnknown.
func Classify(sqlText string) (SQLStatementType, error) {
	_, stmt, err := parseSingle(sqlText)
	if err != nil {
		return SQLTypeUnknown, err
	}

	switch n := stmt.GetNode().(type) {
	case *pg_query.Node_SelectStmt:
		if _, err := checkSelect(n.SelectStmt); err != nil {
			return SQLTypeUnknown, nil
		}
		return SQLTypeSelect, nil
	case *pg_query.Node_InsertStmt:
		return SQLTypeInsert, nil
	case *pg_query.Node_UpdateStmt:
		return SQLTypeUpdate, nil
	case *pg_query.Node_DeleteStmt:
		return SQLTypeDelete, nil
	case *pg_query.Node_CallStmt:
		return SQLTypeCall, nil
	case *pg_query.Node_TruncateStmt, *pg_query.Node_CreateStmt, *pg_query.Node_CreateTableAsStmt, *pg_query.Node_AlterTableStmt,
		*pg_query.Node_DropStmt, *pg_query.Node_IndexStmt, *pg_query.Node_ViewStmt,
		*pg_query.Node_CreateSchemaStmt, *pg_query.Node_RenameStmt, *pg_query.Node_CreateFunctionStmt:
		return SQLTypeDDL, nil
	default:
		return SQLTypeUnknown, nil
	}
}

// IsSafeSelect reports whether sqlText is exactly one read-only SELECT.
// Accepted shapes: a plain SELECT, a set operation of safe SELECTs, and a WITH
// whose every CTE body is itself a safe SELECT.
func IsSafeSelect(sqlText string) bool {
	return ValidateSelect(sqlText) == nil
}

// ValidateSelect is IsSafeSelect with a reason. Failures are *apperrors.UnsafeSQLError.
func ValidateSelect(sqlText string) error {
	_, stmt, err := parseSingle(sqlText)
	if err != nil {
		return &apperrors.UnsafeSQLError{SQL: sqlText, Reason: err.Error()}
	}
	sel := stmt.GetSelectStmt()
	if sel == nil {
		return &apperrors.UnsafeSQLError{SQL: sqlText, Reason: "only SELECT statements are allowed"}
	}
	if reason, err := checkSelect(sel); err != nil {
		return &apperrors.UnsafeSQLError{SQL: sqlText, Reason: reason}
	}
	return nil
}

var errUnsafeShape = errors.New("unsafe select shape")

func checkSelect(sel *pg_query.SelectStmt) (string, error) {
	if sel == nil {
		return "missing SELECT", errUnsafeShape
	}
	if sel.GetIntoClause() != nil {
		return "SELECT INTO is not allowed", errUnsafeShape
	}
	if len(sel.GetLockingClause()) > 0 {
		return "row-locking clauses are not allowed", errUnsafeShape
	}
	if with := sel.GetWithClause(); with != nil {
		for _, cte := range with.GetCtes() {
			body := cte.GetCommonTableExpr().GetCtequery()
			inner := body.GetSelectStmt()
			if inner == nil {
				name := cte.GetCommonTableExpr().GetCtename()
				return fmt.Sprintf("CTE %q is not a SELECT", name), errUnsafeShape
			}
			if reason, err := checkSelect(inner); err != nil {
				return reason, err
			}
		}
	}

	switch sel.GetOp() {
	case pg_query.SetOperation_SETOP_UNION, pg_query.SetOperation_SETOP_INTERSECT, pg_query.SetOperation_SETOP_EXCEPT:
		if reason, err := checkSelect(sel.GetLarg()); err != nil {
			return reason, err
		}
		return checkSelect(sel.GetRarg())
	}

	if len(sel.GetValuesLists()) > 0 {
		return "bare VALUES is not allowed", errUnsafeShape
	}
	return "", nil
}
