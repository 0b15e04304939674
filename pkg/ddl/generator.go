package ddl

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var identifierRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// validateIdentifier ensures an identifier contains only safe characters for SQL.
// Returns an error if the identifier contains characters that could be used for SQL injection.
func validateIdentifier(name, fieldName string) error {
	if name == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("%s must start with a letter and contain only letters, numbers, and underscores (got: %s)", fieldName, name)
	}
	return nil
}

// Config configures the tables backing the migration infrastructure.
type Config struct {
	// OutputFolder is the directory where the migration file will be written
	OutputFolder string

	// OutputFilename is the name of the migration file
	OutputFilename string

	// SchemaName is the database schema name (PostgreSQL) or database name (MySQL).
	// For SQLite it becomes a table name prefix (e.g. schemamigrate_ledger).
	SchemaName string

	// LedgerTable records applied migrations.
	LedgerTable string

	// IntentsTable records migrations that started mutating the schema store
	// but have not been confirmed in the ledger yet.
	IntentsTable string

	// LeasesTable holds heartbeated run locks.
	LeasesTable string

	// CollectionsTable holds collection schemas for the SQL schema store.
	CollectionsTable string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	timestamp := time.Now().Format("20060102150405")
	return Config{
		OutputFolder:     "migrations",
		OutputFilename:   fmt.Sprintf("%s_init_schemamigrate.sql", timestamp),
		SchemaName:       "schemamigrate",
		LedgerTable:      "ledger",
		IntentsTable:     "intents",
		LeasesTable:      "leases",
		CollectionsTable: "collections",
	}
}

// Validate checks every configured name to prevent SQL injection.
func (c *Config) Validate() error {
	checks := []struct{ value, field string }{
		{c.SchemaName, "SchemaName"},
		{c.LedgerTable, "LedgerTable"},
		{c.IntentsTable, "IntentsTable"},
		{c.LeasesTable, "LeasesTable"},
		{c.CollectionsTable, "CollectionsTable"},
	}
	for _, check := range checks {
		if err := validateIdentifier(check.value, check.field); err != nil {
			return err
		}
	}
	return nil
}

// Tables holds fully qualified table names for one dialect.
type Tables struct {
	Ledger      string
	Intents     string
	Leases      string
	Collections string
}

// Tables qualifies the configured table names for d.
func (c *Config) Tables(d Dialect) Tables {
	return Tables{
		Ledger:      d.Table(c.SchemaName, c.LedgerTable),
		Intents:     d.Table(c.SchemaName, c.IntentsTable),
		Leases:      d.Table(c.SchemaName, c.LeasesTable),
		Collections: d.Table(c.SchemaName, c.CollectionsTable),
	}
}

// Statements returns the DDL statements for d, one statement per element.
// Every statement is idempotent so the list can be executed on each startup.
func Statements(d Dialect, config *Config) ([]string, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	switch d {
	case Postgres:
		return postgresStatements(config), nil
	case MySQL:
		return mysqlStatements(config), nil
	case SQLite:
		return sqliteStatements(config), nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", d)
	}
}

// Generate renders the migration file content for d.
func Generate(d Dialect, config *Config) (string, error) {
	stmts, err := Statements(d, config)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "-- Schema Migration Infrastructure\n-- Generated: %s\n-- Database: %s\n\n", time.Now().Format(time.RFC3339), d)
	for _, stmt := range stmts {
		b.WriteString(stmt)
		b.WriteString(";\n\n")
	}
	return b.String(), nil
}

// WriteFile generates the migration for d into config.OutputFolder.
func WriteFile(d Dialect, config *Config) error {
	sql, err := Generate(d, config)
	if err != nil {
		return err
	}

	// Ensure output folder exists
	if err := os.MkdirAll(config.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}

	outputPath := filepath.Join(config.OutputFolder, config.OutputFilename)
	if err := os.WriteFile(outputPath, []byte(sql), 0o600); err != nil {
		return fmt.Errorf("failed to write migration file: %w", err)
	}

	return nil
}

// GeneratePostgres generates a PostgreSQL migration file.
func GeneratePostgres(config *Config) error { return WriteFile(Postgres, config) }

// GenerateMySQL generates a MySQL/MariaDB migration file.
func GenerateMySQL(config *Config) error { return WriteFile(MySQL, config) }

// GenerateSQLite generates a SQLite migration file.
func GenerateSQLite(config *Config) error { return WriteFile(SQLite, config) }

func postgresStatements(config *Config) []string {
	t := config.Tables(Postgres)
	return []string{
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", config.SchemaName),

		// One row per applied migration
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id BIGINT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, t.Ledger),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id BIGINT PRIMARY KEY,
    direction TEXT NOT NULL CHECK (direction IN ('up', 'down')),
    started_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, t.Intents),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    lock_key TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    acquired_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    heartbeat_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, t.Leases),

		// Index for finding stale leases by heartbeat
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_heartbeat ON %s (heartbeat_at)", config.LeasesTable, t.Leases),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    data JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, t.Collections),
	}
}

func mysqlStatements(config *Config) []string {
	t := config.Tables(MySQL)
	const tableOptions = "ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci"
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s
    DEFAULT CHARACTER SET utf8mb4
    DEFAULT COLLATE utf8mb4_unicode_ci`, config.SchemaName),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id BIGINT PRIMARY KEY,
    name VARCHAR(255) NOT NULL DEFAULT '',
    applied_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
) %s`, t.Ledger, tableOptions),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id BIGINT PRIMARY KEY,
    direction ENUM('up', 'down') NOT NULL,
    started_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
) %s`, t.Intents, tableOptions),

		// MySQL has no CREATE INDEX IF NOT EXISTS, so the index is declared inline
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    lock_key VARCHAR(191) PRIMARY KEY,
    owner VARCHAR(64) NOT NULL,
    acquired_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
    heartbeat_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
    INDEX idx_%s_heartbeat (heartbeat_at)
) %s`, t.Leases, config.LeasesTable, tableOptions),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id VARCHAR(191) PRIMARY KEY,
    name VARCHAR(191) NOT NULL UNIQUE,
    data JSON NOT NULL,
    updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6)
) %s`, t.Collections, tableOptions),
	}
}

func sqliteStatements(config *Config) []string {
	t := config.Tables(SQLite)
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, t.Ledger),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id INTEGER PRIMARY KEY,
    direction TEXT NOT NULL CHECK (direction IN ('up', 'down')),
    started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, t.Intents),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    lock_key TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    acquired_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    heartbeat_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, t.Leases),

		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_heartbeat ON %s (heartbeat_at)", t.Leases, t.Leases),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    data TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, t.Collections),
	}
}
