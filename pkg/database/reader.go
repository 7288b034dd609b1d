package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/askdb/askdb/pkg/logging"
	sqlutil "github.com/askdb/askdb/pkg/sql"
)

// Querier runs parameterized reads and returns rows as column-name maps.
// Parameters bind positionally to $1, $2, ...
type Querier interface {
	FetchAll(ctx context.Context, query string, params ...any) ([]map[string]any, error)
	FetchOne(ctx context.Context, query string, params ...any) (map[string]any, bool, error)
}

// Reader executes read queries, one dedicated connection per operation.
type Reader struct {
	db     *sql.DB
	cfg    Config
	logger *zap.Logger
}

var _ Querier = (*Reader)(nil)

// NewReader wraps an open *sql.DB.
func NewReader(db *sql.DB, cfg *Config, logger *zap.Logger) *Reader {
	return &Reader{db: db, cfg: *cfg, logger: logger.Named("database")}
}

// DB returns the underlying handle.
func (r *Reader) DB() *sql.DB {
	return r.db
}

// Close closes the underlying handle.
func (r *Reader) Close() error {
	return r.db.Close()
}

// Ping checks connectivity.
func (r *Reader) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// acquire takes a connection and applies session settings. The caller must Close it.
func (r *Reader) acquire(ctx context.Context) (*sql.Conn, error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	for _, stmt := range sessionStatements(&r.cfg) {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("session setup %q: %w", stmt, err)
		}
	}
	return conn, nil
}

// FetchAll returns every row of the query.
func (r *Reader) FetchAll(ctx context.Context, query string, params ...any) ([]map[string]any, error) {
	if hit := sqlutil.CheckParameters(params); hit != nil {
		r.logger.Warn("Rejected query parameter",
			zap.Int("position", hit.Position),
			zap.String("fingerprint", hit.Fingerprint))
		return nil, hit
	}

	conn, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	start := time.Now()
	rows, err := conn.QueryContext(ctx, query, params...)
	if err != nil {
		r.logger.Debug("Query failed",
			zap.String("query", logging.SanitizeQuery(query)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, err
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Query executed",
		zap.String("query", logging.SanitizeQuery(query)),
		zap.Int("rows", len(result)),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

// FetchOne returns the first row, or ok=false when the query yields none.
func (r *Reader) FetchOne(ctx context.Context, query string, params ...any) (map[string]any, bool, error) {
	rows, err := r.FetchAll(ctx, query, params...)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("read column types: %w", err)
	}

	result := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col.Name()] = normalizeValue(col.DatabaseTypeName(), values[i])
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

// normalizeValue converts driver values into JSON-friendly ones:
// bytes become text and NUMERIC becomes a number when it fits a float64.
func normalizeValue(dbType string, v any) any {
	switch val := v.(type) {
	case []byte:
		if strings.EqualFold(dbType, "NUMERIC") {
			return parseNumeric(string(val))
		}
		return string(val)
	case string:
		if strings.EqualFold(dbType, "NUMERIC") {
			return parseNumeric(val)
		}
		return val
	default:
		return v
	}
}

func parseNumeric(s string) any {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return s
	}
	return f
}
