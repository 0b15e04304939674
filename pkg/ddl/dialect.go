package ddl

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect identifies a supported SQL database.
type Dialect string

const (
	// Postgres is PostgreSQL, accessed through github.com/lib/pq.
	Postgres Dialect = "postgres"

	// MySQL is MySQL or MariaDB, accessed through github.com/go-sql-driver/mysql.
	MySQL Dialect = "mysql"

	// SQLite is SQLite, accessed through github.com/mattn/go-sqlite3.
	SQLite Dialect = "sqlite"
)

// ParseDialect maps an adapter name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported adapter %q: supported adapters are postgres, mysql, sqlite", name)
	}
}

// DriverName returns the database/sql driver name registered for the dialect.
func (d Dialect) DriverName() string {
	if d == SQLite {
		return "sqlite3"
	}
	return string(d)
}

// Rebind rewrites ? placeholders into the dialect's bind syntax.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Table returns the fully qualified name of table inside schema.
// SQLite has no schemas, so the schema becomes a table name prefix.
func (d Dialect) Table(schema, table string) string {
	if d == SQLite {
		return schema + "_" + table
	}
	return schema + "." + table
}

// Upsert returns an insert statement for table that replaces updateCols when
// a row with the same keyCol already exists. Placeholders use ? and should be
// passed through Rebind.
func (d Dialect) Upsert(table, keyCol string, cols []string, updateCols []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders)

	sets := make([]string, len(updateCols))
	for i, c := range updateCols {
		switch d {
		case MySQL:
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", c, c)
		default:
			sets[i] = fmt.Sprintf("%s = excluded.%s", c, c)
		}
	}

	if d == MySQL {
		return insert + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
	return insert + fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET ", keyCol) + strings.Join(sets, ", ")
}
