//go:build integration

package integration_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/getpup/schemamigrate/pkg/ddl"
	"github.com/getpup/schemamigrate/pkg/migrate"
)

// getTestDB returns a database connection for integration tests.
// It reads the DATABASE_URL environment variable and skips the test if not set.
func getTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	return db
}

// setupTables creates the migrator tables in a schema unique to the test and
// drops that schema when the test ends.
func setupTables(t *testing.T, db *sql.DB) ddl.Config {
	t.Helper()

	config := ddl.DefaultConfig()
	config.SchemaName = "schemamigrate_it_" + uuid.NewString()[:8]

	if err := migrate.EnsureSchema(context.Background(), db, ddl.Postgres, config); err != nil {
		t.Fatalf("failed to create tables: %v", err)
	}

	t.Cleanup(func() { teardownTables(t, db, config) })
	return config
}

// teardownTables drops the test schema.
// Errors are logged but don't fail the test.
func teardownTables(t *testing.T, db *sql.DB, config ddl.Config) {
	t.Helper()

	if _, err := db.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", config.SchemaName)); err != nil {
		t.Logf("warning: failed to drop schema %s: %v", config.SchemaName, err)
	}
}
