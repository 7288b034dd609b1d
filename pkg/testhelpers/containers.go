package testhelpers

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/askdb/askdb/pkg/database"
	"github.com/askdb/askdb/pkg/retry"
)

// PostgresImage is the image the sample database runs on.
const PostgresImage = "postgres:16-alpine"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// TargetDB is a PostgreSQL container seeded with the sample business schema:
// companies, users, tasks and comments.
type TargetDB struct {
	Container testcontainers.Container
	DB        *sql.DB
	Config    *database.Config
	ConnStr   string
}

var (
	sharedTargetDB     *TargetDB
	sharedTargetDBOnce sync.Once
	sharedTargetDBErr  error
)

// GetTargetDB returns a shared seeded PostgreSQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetTargetDB(t *testing.T) *TargetDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTargetDBOnce.Do(func() {
		sharedTargetDB, sharedTargetDBErr = setupTargetDB()
	})

	if sharedTargetDBErr != nil {
		t.Fatalf("Failed to setup target database: %v", sharedTargetDBErr)
	}

	return sharedTargetDB
}

func setupTargetDB() (*TargetDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "askdb_test",
			"POSTGRES_USER":     "askdb",
			"POSTGRES_PASSWORD": "test_password",
		},
		// The entrypoint restarts the server once after initdb.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://askdb:test_password@%s:%s/askdb_test?sslmode=disable",
		host, port.Port())
	cfg := &database.Config{URL: connStr, MaxConnections: 5}

	db, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*sql.DB, error) {
		return database.Open(ctx, cfg, zap.NewNop())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to target database: %w", err)
	}

	if err := database.RunMigrations(db, migrationsFS, "migrations", zap.NewNop()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to seed target database: %w", err)
	}

	return &TargetDB{
		Container: container,
		DB:        db,
		Config:    cfg,
		ConnStr:   connStr,
	}, nil
}
