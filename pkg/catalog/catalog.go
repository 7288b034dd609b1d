// Package catalog caches table, column and foreign-key metadata read from the target database.
package catalog

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/askdb/askdb/pkg/apperrors"
	"github.com/askdb/askdb/pkg/database"
	"github.com/askdb/askdb/pkg/metrics"
	"github.com/askdb/askdb/pkg/models"
)

// DefaultSchema is the schema introspected when none is configured.
const DefaultSchema = "public"

const columnsQuery = `
SELECT table_name, column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = $1
ORDER BY table_name, ordinal_position`

const foreignKeysQuery = `
SELECT tc.table_name AS child_table,
       kcu.column_name AS child_column,
       ccu.table_name AS parent_table,
       ccu.column_name AS parent_column
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu USING (constraint_name, table_schema)
JOIN information_schema.constraint_column_usage ccu USING (constraint_name, table_schema)
WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1
ORDER BY child_table`

// snapshot is an immutable view of the catalog. Loads replace it wholesale.
type snapshot struct {
	tables map[string]*models.TableSchema
	names  []string // sorted
	fks    []models.ForeignKeyEdge
}

var emptySnapshot = &snapshot{tables: map[string]*models.TableSchema{}}

// Catalog is the process-wide schema cache. It loads lazily on first read and
// is safe for concurrent use; concurrent first loads may both run, and the
// last one to finish wins.
type Catalog struct {
	querier database.Querier
	schema  string
	logger  *zap.Logger
	current atomic.Pointer[snapshot]
}

// New creates an empty catalog for the given schema.
func New(querier database.Querier, schema string, logger *zap.Logger) *Catalog {
	if schema == "" {
		schema = DefaultSchema
	}
	return &Catalog{
		querier: querier,
		schema:  schema,
		logger:  logger.Named("catalog"),
	}
}

// Schema returns the introspected schema name.
func (c *Catalog) Schema() string {
	return c.schema
}

// Load reads all columns and foreign keys and replaces the cached state.
// On failure the previous snapshot is kept and a *apperrors.CatalogLoadError is returned.
func (c *Catalog) Load(ctx context.Context) error {
	start := time.Now()

	colRows, err := c.querier.FetchAll(ctx, columnsQuery, c.schema)
	if err != nil {
		metrics.CatalogLoadsTotal.WithLabelValues("error").Inc()
		return &apperrors.CatalogLoadError{Schema: c.schema, Cause: fmt.Errorf("columns: %w", err)}
	}
	fkRows, err := c.querier.FetchAll(ctx, foreignKeysQuery, c.schema)
	if err != nil {
		metrics.CatalogLoadsTotal.WithLabelValues("error").Inc()
		return &apperrors.CatalogLoadError{Schema: c.schema, Cause: fmt.Errorf("foreign keys: %w", err)}
	}

	snap := &snapshot{tables: make(map[string]*models.TableSchema)}
	for _, row := range colRows {
		table := stringValue(row["table_name"])
		if table == "" {
			continue
		}
		ts, ok := snap.tables[table]
		if !ok {
			ts = &models.TableSchema{TableName: table}
			snap.tables[table] = ts
		}
		ts.Columns = append(ts.Columns, models.Column{
			Name:       stringValue(row["column_name"]),
			DataType:   stringValue(row["data_type"]),
			IsNullable: strings.EqualFold(stringValue(row["is_nullable"]), "YES"),
		})
	}
	snap.names = make([]string, 0, len(snap.tables))
	for name := range snap.tables {
		snap.names = append(snap.names, name)
	}
	sort.Strings(snap.names)

	for _, row := range fkRows {
		fk := models.ForeignKeyEdge{
			ChildTable:   stringValue(row["child_table"]),
			ChildColumn:  stringValue(row["child_column"]),
			ParentTable:  stringValue(row["parent_table"]),
			ParentColumn: stringValue(row["parent_column"]),
		}
		if _, ok := snap.tables[fk.ChildTable]; !ok {
			c.logger.Debug("Foreign key references unknown child table", zap.String("table", fk.ChildTable))
		}
		if _, ok := snap.tables[fk.ParentTable]; !ok {
			c.logger.Debug("Foreign key references unknown parent table", zap.String("table", fk.ParentTable))
		}
		snap.fks = append(snap.fks, fk)
	}

	c.current.Store(snap)
	metrics.CatalogLoadsTotal.WithLabelValues("success").Inc()
	metrics.CatalogTables.Set(float64(len(snap.tables)))
	c.logger.Info("Schema catalog loaded",
		zap.String("schema", c.schema),
		zap.Int("tables", len(snap.tables)),
		zap.Int("foreign_keys", len(snap.fks)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// EnsureLoaded loads the catalog unless a load has already succeeded.
func (c *Catalog) EnsureLoaded(ctx context.Context) error {
	if c.current.Load() != nil {
		return nil
	}
	return c.Load(ctx)
}

// Loaded reports whether a load has succeeded since start or the last Invalidate.
func (c *Catalog) Loaded() bool {
	return c.current.Load() != nil
}

// Invalidate drops the cached state; the next read loads again.
func (c *Catalog) Invalidate() {
	c.current.Store(nil)
}

// Reload forces a fresh load. The previous snapshot is served until it succeeds.
func (c *Catalog) Reload(ctx context.Context) error {
	return c.Load(ctx)
}

// read returns the current snapshot, loading it first if needed.
// A failed load yields the empty snapshot.
func (c *Catalog) read(ctx context.Context) *snapshot {
	if err := c.EnsureLoaded(ctx); err != nil {
		c.logger.Warn("Schema catalog unavailable", zap.Error(err))
	}
	if snap := c.current.Load(); snap != nil {
		return snap
	}
	return emptySnapshot
}

// Snippets yields one "table name(col:type, ...)" line per table sorted by name,
// then one "fk child.col -> parent.col" line per foreign key in catalog order.
func (c *Catalog) Snippets(ctx context.Context) iter.Seq[string] {
	snap := c.read(ctx)
	return func(yield func(string) bool) {
		for _, name := range snap.names {
			if !yield(tableSnippet(snap.tables[name])) {
				return
			}
		}
		for _, fk := range snap.fks {
			if !yield(fkSnippet(fk)) {
				return
			}
		}
	}
}

// Describe returns snippets restricted to the given tables plus the foreign keys
// joining two of them. Unknown names are ignored.
func (c *Catalog) Describe(ctx context.Context, tables []string) []string {
	snap := c.read(ctx)
	selected := make(map[string]bool, len(tables))
	for _, t := range tables {
		if _, ok := snap.tables[t]; ok {
			selected[t] = true
		}
	}

	var out []string
	for _, name := range snap.names {
		if selected[name] {
			out = append(out, tableSnippet(snap.tables[name]))
		}
	}
	for _, fk := range snap.fks {
		if selected[fk.ChildTable] && selected[fk.ParentTable] {
			out = append(out, fkSnippet(fk))
		}
	}
	return out
}

// TableNames returns all table names in sorted order.
func (c *Catalog) TableNames(ctx context.Context) []string {
	return slices.Clone(c.read(ctx).names)
}

// ForeignKeys returns a copy of the foreign-key edges.
func (c *Catalog) ForeignKeys(ctx context.Context) []models.ForeignKeyEdge {
	return slices.Clone(c.read(ctx).fks)
}

// Table looks a table up by exact name, then case-insensitively.
func (c *Catalog) Table(ctx context.Context, name string) (*models.TableSchema, bool) {
	return c.read(ctx).table(name)
}

// HasTable reports whether the table exists.
func (c *Catalog) HasTable(ctx context.Context, name string) bool {
	_, ok := c.Table(ctx, name)
	return ok
}

// HasColumn reports whether the table exists and has the column (case-insensitive).
func (c *Catalog) HasColumn(ctx context.Context, table, column string) bool {
	ts, ok := c.Table(ctx, table)
	return ok && ts.HasColumn(column)
}

// FirstTableMatching returns the first preference that names an existing table,
// trying each preference as given, then its singular and plural forms. With no
// match it returns the alphabetically first table.
func (c *Catalog) FirstTableMatching(ctx context.Context, preferences []string) (string, bool) {
	snap := c.read(ctx)
	for _, pref := range preferences {
		if name, ok := snap.resolve(pref); ok {
			return name, true
		}
	}
	if len(snap.names) == 0 {
		return "", false
	}
	return snap.names[0], true
}

// ResolveTable maps a loosely named table (any case, singular or plural, optionally
// schema-qualified) onto a catalog table name.
func (c *Catalog) ResolveTable(ctx context.Context, name string) (string, bool) {
	name = strings.TrimSpace(name)
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Trim(name, `"`)
	if name == "" {
		return "", false
	}
	return c.read(ctx).resolve(name)
}

func (s *snapshot) table(name string) (*models.TableSchema, bool) {
	if ts, ok := s.tables[name]; ok {
		return ts, true
	}
	for _, n := range s.names {
		if strings.EqualFold(n, name) {
			return s.tables[n], true
		}
	}
	return nil, false
}

func (s *snapshot) resolve(name string) (string, bool) {
	for _, candidate := range []string{name, inflection.Singular(name), inflection.Plural(name)} {
		if ts, ok := s.table(candidate); ok {
			return ts.TableName, true
		}
	}
	return "", false
}

func tableSnippet(ts *models.TableSchema) string {
	cols := make([]string, len(ts.Columns))
	for i, col := range ts.Columns {
		cols[i] = col.Name + ":" + col.DataType
	}
	return fmt.Sprintf("table %s(%s)", ts.TableName, strings.Join(cols, ", "))
}

func fkSnippet(fk models.ForeignKeyEdge) string {
	return fmt.Sprintf("fk %s.%s -> %s.%s", fk.ChildTable, fk.ChildColumn, fk.ParentTable, fk.ParentColumn)
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}
