package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"go.uber.org/zap"

	"github.com/askdb/askdb/pkg/logging"
)

// Config holds database connection configuration.
type Config struct {
	URL             string
	Role            string // optional SET ROLE target for every connection
	ReadOnlySession bool   // SET default_transaction_read_only = on
	MaxConnections  int
	MaxConnLifetime time.Duration
}

// Open creates a *sql.DB over the pgx driver and verifies it with a ping.
// Idle connections are not retained: every operation dials its own
// connection and session settings never leak between operations.
func Open(ctx context.Context, cfg *Config, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxIdleConns(0)
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	lifetime := cfg.MaxConnLifetime
	if lifetime == 0 {
		lifetime = time.Hour
	}
	db.SetConnMaxLifetime(lifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database",
		zap.String("dsn", logging.SanitizeConnectionString(cfg.URL)),
		zap.Bool("read_only_session", cfg.ReadOnlySession),
		zap.Bool("role_set", cfg.Role != ""))
	return db, nil
}

// sessionStatements returns the statements run on every freshly acquired connection.
func sessionStatements(cfg *Config) []string {
	stmts := []string{"SET client_encoding TO 'UTF8'"}
	if cfg.ReadOnlySession {
		stmts = append(stmts, "SET default_transaction_read_only = on")
	}
	if cfg.Role != "" {
		stmts = append(stmts, "SET ROLE "+pgx.Identifier{cfg.Role}.Sanitize())
	}
	return stmts
}
