package migrations_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-checkout/internal/database/migrations"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/testutil"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var exists bool
	err := db.QueryRowContext(context.Background(),
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)", name).Scan(&exists)
	require.NoError(t, err)
	return exists
}

func TestRunMigrations_PostgresSchemaOnly(t *testing.T) {
	sqldb := testutil.StartPostgres(t)
	runner := migrations.NewRunner(sqldb, migrations.MigrateOptions{MigrationsDir: testutil.MigrationsDir()}, logger.Nop())

	require.NoError(t, runner.RunMigrations())
	version, dirty, err := runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(migrations.SchemaVersion), version)
	assert.False(t, dirty)

	for _, table := range []string{"ticket_types", "purchases", "purchase_lines", "tickets", "coupons"} {
		assert.True(t, tableExists(t, sqldb, table), table)
	}

	var seeded int
	require.NoError(t, sqldb.QueryRow("SELECT COUNT(*) FROM ticket_types").Scan(&seeded))
	assert.Zero(t, seeded)

	// a second start is a no-op
	require.NoError(t, runner.RunMigrations())
}

func TestRunMigrations_PostgresSeedAndRollback(t *testing.T) {
	sqldb := testutil.StartPostgres(t)
	runner := migrations.NewRunner(sqldb, migrations.MigrateOptions{
		MigrationsDir: testutil.MigrationsDir(),
		SeedData:      true,
	}, logger.Nop())

	require.NoError(t, runner.RunMigrations())
	version, _, err := runner.Version()
	require.NoError(t, err)
	assert.Greater(t, version, uint(migrations.SchemaVersion))

	var seeded int
	require.NoError(t, sqldb.QueryRow("SELECT COUNT(*) FROM ticket_types").Scan(&seeded))
	assert.Positive(t, seeded)

	require.NoError(t, runner.MigrateTo(migrations.SchemaVersion))
	require.NoError(t, sqldb.QueryRow("SELECT COUNT(*) FROM ticket_types").Scan(&seeded))
	assert.Zero(t, seeded)

	require.NoError(t, runner.MigrateDown())
	version, _, err = runner.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, tableExists(t, sqldb, "tickets"))

	require.NoError(t, runner.MigrateUp())
	assert.True(t, tableExists(t, sqldb, "tickets"))
}

func TestInitialize_MissingDirectory(t *testing.T) {
	sqldb := testutil.StartPostgres(t)
	runner := migrations.NewRunner(sqldb, migrations.MigrateOptions{MigrationsDir: "/does/not/exist"}, logger.Nop())

	err := runner.Initialize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrations directory does not exist")
}
