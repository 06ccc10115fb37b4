package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-checkout/internal/database/migrations"
	"ms-checkout/internal/logger"
)

// PostgresPoolSize is the connection cap for container-backed databases.
const PostgresPoolSize = 20

// StartPostgres runs a throwaway Postgres container and returns a pooled
// connection to it. The test is skipped in short mode or without Docker.
func StartPostgres(t *testing.T) *sql.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping Postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "checkout",
				"POSTGRES_PASSWORD": "checkout",
				"POSTGRES_DB":       "checkout",
			},
			// the entrypoint restarts the server once after initdb
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Postgres container: %v", err)
	}
	t.Cleanup(func() { container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://checkout:checkout@%s:%s/checkout?sslmode=disable", host, port.Port())
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to open Postgres: %v", err)
	}
	sqldb.SetMaxOpenConns(PostgresPoolSize)
	sqldb.SetMaxIdleConns(PostgresPoolSize)

	if err := sqldb.PingContext(ctx); err != nil {
		t.Fatalf("Failed to ping Postgres: %v", err)
	}
	t.Cleanup(func() { sqldb.Close() })
	return sqldb
}

// MigrationsDir is the absolute path of the repository's migrations folder.
func MigrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}

// NewPostgresDB starts Postgres, applies the schema migrations and wraps the
// pool in bun.
func NewPostgresDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb := StartPostgres(t)
	runner := migrations.NewRunner(sqldb, migrations.MigrateOptions{MigrationsDir: MigrationsDir()}, logger.Nop())
	if err := runner.RunMigrations(); err != nil {
		t.Fatalf("Failed to migrate Postgres: %v", err)
	}

	return bun.NewDB(sqldb, pgdialect.New())
}
