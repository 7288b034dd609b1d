package sql

import (
	"fmt"
	"strings"
	"unicode"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Rewrite is the outcome of a post-processing step.
// When Applied is false, SQL is the input unchanged and Reason says why.
type Rewrite struct {
	SQL     string
	Applied bool
	Reason  string
}

func unchanged(sqlText, reason string) Rewrite {
	return Rewrite{SQL: sqlText, Reason: reason}
}

// EnsureLimit appends " LIMIT n" unless the text already mentions LIMIT anywhere
// (case-insensitive). A trailing ";" stays the final character.
func EnsureLimit(sqlText string, n int) Rewrite {
	if n < 1 {
		return unchanged(sqlText, fmt.Sprintf("invalid limit %d", n))
	}
	if strings.Contains(strings.ToLower(sqlText), "limit") {
		return unchanged(sqlText, "already limited")
	}

	trimmed := strings.TrimRightFunc(sqlText, unicode.IsSpace)
	if strings.HasSuffix(trimmed, ";") {
		core := strings.TrimRightFunc(strings.TrimSuffix(trimmed, ";"), unicode.IsSpace)
		return Rewrite{SQL: fmt.Sprintf("%s LIMIT %d;", core, n), Applied: true}
	}
	return Rewrite{SQL: fmt.Sprintf("%s LIMIT %d", sqlText, n), Applied: true}
}

// StripComments removes "--" and "/* */" comments using the PostgreSQL scanner,
// so text appended afterwards cannot end up inside a comment. Text without
// comments, or that does not scan, is returned unchanged.
func StripComments(sqlText string) string {
	scanned, err := pg_query.Scan(sqlText)
	if err != nil {
		return sqlText
	}

	var (
		b     strings.Builder
		last  int
		found bool
	)
	for _, tok := range scanned.GetTokens() {
		if tok.GetToken() != pg_query.Token_SQL_COMMENT && tok.GetToken() != pg_query.Token_C_COMMENT {
			continue
		}
		start, end := int(tok.GetStart()), int(tok.GetEnd())
		if start < last || end > len(sqlText) || start > end {
			return sqlText
		}
		found = true
		b.WriteString(sqlText[last:start])
		last = end

		out := b.String()
		if out == "" || isSpaceByte(out[len(out)-1]) {
			for last < len(sqlText) && isSpaceByte(sqlText[last]) {
				last++
			}
		} else if last < len(sqlText) && !isSpaceByte(sqlText[last]) {
			b.WriteByte(' ')
		}
	}
	if !found {
		return sqlText
	}
	b.WriteString(sqlText[last:])
	return strings.TrimRightFunc(b.String(), unicode.IsSpace)
}

// isSpaceByte is ASCII-only; UTF-8 continuation bytes must not match.
func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

// ColumnOwner reports whether table has column.
type ColumnOwner func(table, column string) bool

// AppendScopeConstraint ANDs "column = value" into the WHERE clause of a SELECT
// with a FROM clause. Set operations are scoped arm by arm. The predicate is
// always conjoined, so the result set can only narrow. Anything else, including
// text that does not parse, is returned unchanged.
func AppendScopeConstraint(sqlText, column string, value int64) Rewrite {
	return AppendScopeConstraintQualified(sqlText, column, value, nil)
}

// AppendScopeConstraintQualified is AppendScopeConstraint for FROM clauses with
// more than one relation: an unqualified column is prefixed with the alias (or
// name) of the first relation that owner reports as having it. Without an owner,
// or when no relation has the column, the column stays bare.
func AppendScopeConstraintQualified(sqlText, column string, value int64, owner ColumnOwner) Rewrite {
	if strings.TrimSpace(column) == "" {
		return unchanged(sqlText, "no scope column")
	}
	tree, stmt, err := parseSingle(sqlText)
	if err != nil {
		return unchanged(sqlText, err.Error())
	}
	sel := stmt.GetSelectStmt()
	if sel == nil {
		return unchanged(sqlText, "not a SELECT")
	}

	if !scopeSelect(sel, column, value, owner) {
		return unchanged(sqlText, "no FROM clause to scope")
	}

	out, err := pg_query.Deparse(tree)
	if err != nil {
		return unchanged(sqlText, fmt.Sprintf("deparse: %v", err))
	}
	return Rewrite{SQL: out, Applied: true}
}

// scopeSelect mutates sel in place and reports whether any arm was scoped.
func scopeSelect(sel *pg_query.SelectStmt, column string, value int64, owner ColumnOwner) bool {
	if sel == nil {
		return false
	}
	switch sel.GetOp() {
	case pg_query.SetOperation_SETOP_UNION, pg_query.SetOperation_SETOP_INTERSECT, pg_query.SetOperation_SETOP_EXCEPT:
		left := scopeSelect(sel.GetLarg(), column, value, owner)
		right := scopeSelect(sel.GetRarg(), column, value, owner)
		return left || right
	}
	if len(sel.GetFromClause()) == 0 {
		return false
	}

	pred := scopePredicate(qualifyColumn(sel.GetFromClause(), column, owner), value)
	where := sel.GetWhereClause()
	switch {
	case where == nil:
		sel.WhereClause = pred
	case where.GetBoolExpr() != nil && where.GetBoolExpr().GetBoolop() == pg_query.BoolExprType_AND_EXPR:
		where.GetBoolExpr().Args = append(where.GetBoolExpr().Args, pred)
	default:
		sel.WhereClause = pg_query.MakeBoolExprNode(pg_query.BoolExprType_AND_EXPR, []*pg_query.Node{where, pred}, -1)
	}
	return true
}

// fromRelation is one item of a FROM clause. table is empty for subqueries and
// function calls, which can only be referenced by alias.
type fromRelation struct {
	table string
	ref   string
}

func collectRelations(nodes []*pg_query.Node, out []fromRelation) []fromRelation {
	for _, n := range nodes {
		switch {
		case n.GetRangeVar() != nil:
			rv := n.GetRangeVar()
			ref := rv.GetRelname()
			if alias := rv.GetAlias().GetAliasname(); alias != "" {
				ref = alias
			}
			out = append(out, fromRelation{table: rv.GetRelname(), ref: ref})
		case n.GetJoinExpr() != nil:
			j := n.GetJoinExpr()
			out = collectRelations([]*pg_query.Node{j.GetLarg(), j.GetRarg()}, out)
		case n.GetRangeSubselect() != nil:
			out = append(out, fromRelation{ref: n.GetRangeSubselect().GetAlias().GetAliasname()})
		case n.GetRangeFunction() != nil:
			out = append(out, fromRelation{ref: n.GetRangeFunction().GetAlias().GetAliasname()})
		default:
			out = append(out, fromRelation{})
		}
	}
	return out
}

// qualifyColumn returns the column as it should appear in the predicate.
// A single relation never needs a qualifier.
func qualifyColumn(from []*pg_query.Node, column string, owner ColumnOwner) string {
	if owner == nil || strings.Contains(column, ".") {
		return column
	}
	rels := collectRelations(from, nil)
	if len(rels) < 2 {
		return column
	}
	for _, rel := range rels {
		if rel.table != "" && owner(rel.table, column) {
			return rel.ref + "." + column
		}
	}
	return column
}

func scopePredicate(column string, value int64) *pg_query.Node {
	parts := strings.Split(column, ".")
	fields := make([]*pg_query.Node, 0, len(parts))
	for _, p := range parts {
		fields = append(fields, pg_query.MakeStrNode(strings.TrimSpace(p)))
	}
	return pg_query.MakeAExprNode(
		pg_query.A_Expr_Kind_AEXPR_OP,
		[]*pg_query.Node{pg_query.MakeStrNode("=")},
		pg_query.MakeColumnRefNode(fields, -1),
		pg_query.MakeAConstIntNode(value, -1),
		-1,
	)
}
