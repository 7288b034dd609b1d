package models

import "strings"

// Column is one row of catalog metadata for a table column.
type Column struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	IsNullable bool   `json:"is_nullable"`
}

// IsTemporal reports whether the column holds a date or timestamp value.
func (c Column) IsTemporal() bool {
	t := strings.ToLower(c.DataType)
	return strings.HasPrefix(t, "timestamp") || t == "date"
}

// TableSchema describes a table and its columns in ordinal position order.
type TableSchema struct {
	TableName string   `json:"table_name"`
	Columns   []Column `json:"columns"`
}

// Column returns the column with the given name using a case-insensitive match.
func (t *TableSchema) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// HasColumn reports whether the table has a column with the given name (case-insensitive).
func (t *TableSchema) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// ForeignKeyEdge is a directed child -> parent reference between two columns.
// Edges may form cycles (self-referencing tables).
type ForeignKeyEdge struct {
	ChildTable   string `json:"child_table"`
	ChildColumn  string `json:"child_column"`
	ParentTable  string `json:"parent_table"`
	ParentColumn string `json:"parent_column"`
}

// SchemaSummary is the diagnostic view of the catalog served by /debug/schema.
type SchemaSummary struct {
	Loaded      bool     `json:"loaded"`
	TablesCount int      `json:"tables_count"`
	Tables      []string `json:"tables"`
	FKsCount    int      `json:"fks_count"`
	Error       string   `json:"error,omitempty"`
}
