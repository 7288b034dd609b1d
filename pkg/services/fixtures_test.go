package services

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/askdb/askdb/pkg/catalog"
	"github.com/askdb/askdb/pkg/retrieval"
)

// schemaQuerier serves information_schema rows to a real catalog and canned rows
// to every other query.
type schemaQuerier struct {
	mu      sync.Mutex
	columns []map[string]any
	fks     []map[string]any
	loadErr error

	rows    []map[string]any
	execErr error
	queries []string
}

func (q *schemaQuerier) FetchAll(_ context.Context, query string, _ ...any) ([]map[string]any, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch {
	case strings.Contains(query, "information_schema.columns"):
		return q.columns, q.loadErr
	case strings.Contains(query, "FOREIGN KEY"):
		return q.fks, q.loadErr
	}
	q.queries = append(q.queries, query)
	if q.execErr != nil {
		return nil, q.execErr
	}
	return q.rows, nil
}

func (q *schemaQuerier) FetchOne(ctx context.Context, query string, params ...any) (map[string]any, bool, error) {
	rows, err := q.FetchAll(ctx, query, params...)
	if err != nil || len(rows) == 0 {
		return nil, false, err
	}
	return rows[0], true, nil
}

func (q *schemaQuerier) executed() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.queries...)
}

func column(table, name, typ string) map[string]any {
	return map[string]any{"table_name": table, "column_name": name, "data_type": typ, "is_nullable": "YES"}
}

func tasksSchema() *schemaQuerier {
	return &schemaQuerier{
		columns: []map[string]any{
			column("comments", "id", "integer"),
			column("comments", "task_id", "integer"),
			column("comments", "body", "text"),
			column("tasks", "id", "integer"),
			column("tasks", "title", "text"),
			column("tasks", "status", "text"),
			column("tasks", "company_id", "integer"),
			column("tasks", "assignee_id", "integer"),
			column("tasks", "created_at", "timestamp without time zone"),
			column("users", "id", "integer"),
			column("users", "name", "text"),
			column("users", "company_id", "integer"),
			column("users", "department_id", "integer"),
		},
		fks: []map[string]any{
			{"child_table": "tasks", "child_column": "assignee_id", "parent_table": "users", "parent_column": "id"},
			{"child_table": "comments", "child_column": "task_id", "parent_table": "tasks", "parent_column": "id"},
		},
	}
}

func newTestCatalog(q *schemaQuerier) *catalog.Catalog {
	return catalog.New(q, "public", zap.NewNop())
}

func newTestRetriever(c *catalog.Catalog) *retrieval.Retriever {
	return retrieval.NewRetriever(c, nil, zap.NewNop())
}

func int64Ptr(v int64) *int64 { return &v }
