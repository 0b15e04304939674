package ddl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testConfig(dir string) Config {
	return Config{
		OutputFolder:     dir,
		OutputFilename:   "test_migration.sql",
		SchemaName:       "schemamigrate",
		LedgerTable:      "ledger",
		IntentsTable:     "intents",
		LeasesTable:      "leases",
		CollectionsTable: "collections",
	}
}

func TestGeneratePostgres(t *testing.T) {
	tmpDir := t.TempDir()
	config := testConfig(tmpDir)

	if err := GeneratePostgres(&config); err != nil {
		t.Fatalf("GeneratePostgres failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(tmpDir, config.OutputFilename))
	if err != nil {
		t.Fatalf("Failed to read generated file: %v", err)
	}
	sql := string(content)

	required := []string{
		"-- Database: postgres",
		"CREATE SCHEMA IF NOT EXISTS schemamigrate",
		"CREATE TABLE IF NOT EXISTS schemamigrate.ledger",
		"id BIGINT PRIMARY KEY",
		"applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()",
		"CREATE TABLE IF NOT EXISTS schemamigrate.intents",
		"CHECK (direction IN ('up', 'down'))",
		"CREATE TABLE IF NOT EXISTS schemamigrate.leases",
		"CREATE INDEX IF NOT EXISTS idx_leases_heartbeat ON schemamigrate.leases (heartbeat_at)",
		"CREATE TABLE IF NOT EXISTS schemamigrate.collections",
		"name TEXT NOT NULL UNIQUE",
		"data JSONB NOT NULL",
	}
	for _, r := range required {
		if !strings.Contains(sql, r) {
			t.Errorf("generated SQL missing required string: %s", r)
		}
	}
}

func TestGenerateMySQL(t *testing.T) {
	tmpDir := t.TempDir()
	config := testConfig(tmpDir)

	if err := GenerateMySQL(&config); err != nil {
		t.Fatalf("GenerateMySQL failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(tmpDir, config.OutputFilename))
	if err != nil {
		t.Fatalf("Failed to read generated file: %v", err)
	}
	sql := string(content)

	required := []string{
		"CREATE DATABASE IF NOT EXISTS schemamigrate",
		"CREATE TABLE IF NOT EXISTS schemamigrate.ledger",
		"applied_at DATETIME(6) NOT NULL",
		"direction ENUM('up', 'down') NOT NULL",
		"INDEX idx_leases_heartbeat (heartbeat_at)",
		"name VARCHAR(191) NOT NULL UNIQUE",
		"data JSON NOT NULL",
		"ENGINE=InnoDB",
		"CHARSET=utf8mb4",
	}
	for _, r := range required {
		if !strings.Contains(sql, r) {
			t.Errorf("generated SQL missing required string: %s", r)
		}
	}

	if strings.Contains(sql, "CREATE INDEX IF NOT EXISTS") {
		t.Error("MySQL does not support CREATE INDEX IF NOT EXISTS")
	}
}

func TestGenerateSQLite(t *testing.T) {
	tmpDir := t.TempDir()
	config := testConfig(tmpDir)

	if err := GenerateSQLite(&config); err != nil {
		t.Fatalf("GenerateSQLite failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(tmpDir, config.OutputFilename))
	if err != nil {
		t.Fatalf("Failed to read generated file: %v", err)
	}
	sql := string(content)

	required := []string{
		"CREATE TABLE IF NOT EXISTS schemamigrate_ledger",
		"id INTEGER PRIMARY KEY",
		"CREATE TABLE IF NOT EXISTS schemamigrate_intents",
		"CREATE TABLE IF NOT EXISTS schemamigrate_leases",
		"CREATE INDEX IF NOT EXISTS idx_schemamigrate_leases_heartbeat",
		"CREATE TABLE IF NOT EXISTS schemamigrate_collections",
	}
	for _, r := range required {
		if !strings.Contains(sql, r) {
			t.Errorf("generated SQL missing required string: %s", r)
		}
	}

	if strings.Contains(sql, "CREATE SCHEMA") {
		t.Error("SQLite migration must not create a schema")
	}
}

func TestGenerate_RejectsUnsafeIdentifiers(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty schema", func(c *Config) { c.SchemaName = "" }},
		{"injection in ledger table", func(c *Config) { c.LedgerTable = "ledger; DROP TABLE users" }},
		{"leading digit", func(c *Config) { c.CollectionsTable = "1collections" }},
		{"hyphen", func(c *Config) { c.LeasesTable = "run-leases" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfig(t.TempDir())
			tt.mutate(&config)

			if _, err := Statements(Postgres, &config); err == nil {
				t.Fatal("expected validation error")
			}
			if err := GenerateSQLite(&config); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestStatements_UnknownDialect(t *testing.T) {
	config := testConfig(t.TempDir())
	if _, err := Statements(Dialect("oracle"), &config); err == nil {
		t.Fatal("expected error for unknown dialect")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.SchemaName != "schemamigrate" {
		t.Errorf("unexpected schema name %q", config.SchemaName)
	}
	if !strings.HasSuffix(config.OutputFilename, "_init_schemamigrate.sql") {
		t.Errorf("unexpected filename %q", config.OutputFilename)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}
