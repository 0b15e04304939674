// Package ddl generates the SQL schema that backs the SQL ledger, the SQL
// schema store and the lease lock, for PostgreSQL, MySQL/MariaDB and SQLite.
//
// The same statements are available as a migration file (GeneratePostgres,
// GenerateMySQL, GenerateSQLite) and as a list of statements to execute at
// startup (Statements).
package ddl
