// Command migrate-gen generates SQL files that create the ledger, journal,
// lease and collections tables used by the schema migrator.
//
// Usage:
//
//	go run github.com/getpup/schemamigrate/cmd/migrate-gen -output migrations -filename init.sql
//
// Or with go generate:
//
//	//go:generate go run github.com/getpup/schemamigrate/cmd/migrate-gen -output migrations
//
// Generate migrations for different database adapters:
//
//	go run github.com/getpup/schemamigrate/cmd/migrate-gen -adapter postgres -output migrations
//	go run github.com/getpup/schemamigrate/cmd/migrate-gen -adapter mysql -output migrations
//	go run github.com/getpup/schemamigrate/cmd/migrate-gen -adapter sqlite -output migrations
//
// Customize table names:
//
//	go run github.com/getpup/schemamigrate/cmd/migrate-gen -schema app_migrations -ledger-table applied -output migrations
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/getpup/schemamigrate/pkg/ddl"
)

func main() {
	var (
		adapter          = flag.String("adapter", "postgres", "Database adapter: postgres, mysql, or sqlite")
		outputFolder     = flag.String("output", "migrations", "Output folder for migration file")
		outputFilename   = flag.String("filename", "", "Output filename (default: timestamp-based)")
		schemaName       = flag.String("schema", "schemamigrate", "Schema name (PostgreSQL), database name (MySQL) or table prefix (SQLite)")
		ledgerTable      = flag.String("ledger-table", "ledger", "Name of the applied migrations table")
		intentsTable     = flag.String("intents-table", "intents", "Name of the in-flight migrations journal table")
		leasesTable      = flag.String("leases-table", "leases", "Name of the run lock lease table")
		collectionsTable = flag.String("collections-table", "collections", "Name of the collection schemas table")
	)

	flag.Parse()

	dialect, err := ddl.ParseDialect(*adapter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	config := ddl.DefaultConfig()
	config.OutputFolder = *outputFolder
	config.SchemaName = *schemaName
	config.LedgerTable = *ledgerTable
	config.IntentsTable = *intentsTable
	config.LeasesTable = *leasesTable
	config.CollectionsTable = *collectionsTable

	if *outputFilename != "" {
		config.OutputFilename = *outputFilename
	}

	if err := ddl.WriteFile(dialect, &config); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating migration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s migration: %s/%s\n", dialect, config.OutputFolder, config.OutputFilename)
}
