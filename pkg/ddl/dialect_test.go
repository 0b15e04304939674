package ddl

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in   string
		want Dialect
	}{
		{"postgres", Postgres},
		{"PostgreSQL", Postgres},
		{"mariadb", MySQL},
		{"sqlite3", SQLite},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParseDialect(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}

	_, err := ParseDialect("oracle")
	assert.Error(t, err)
}

func TestDialect_DriverName(t *testing.T) {
	assert.Equal(t, "postgres", Postgres.DriverName())
	assert.Equal(t, "mysql", MySQL.DriverName())
	assert.Equal(t, "sqlite3", SQLite.DriverName())
}

func TestDialect_Rebind(t *testing.T) {
	q := "SELECT id FROM t WHERE a = ? AND b = ?"

	assert.Equal(t, "SELECT id FROM t WHERE a = $1 AND b = $2", Postgres.Rebind(q))
	assert.Equal(t, q, MySQL.Rebind(q))
	assert.Equal(t, q, SQLite.Rebind(q))
}

func TestDialect_Table(t *testing.T) {
	assert.Equal(t, "schemamigrate.ledger", Postgres.Table("schemamigrate", "ledger"))
	assert.Equal(t, "schemamigrate.ledger", MySQL.Table("schemamigrate", "ledger"))
	assert.Equal(t, "schemamigrate_ledger", SQLite.Table("schemamigrate", "ledger"))
}

func TestDialect_Upsert(t *testing.T) {
	cols := []string{"id", "name", "data"}
	update := []string{"name", "data"}

	assert.Equal(t,
		"INSERT INTO c (id, name, data) VALUES (?, ?, ?) ON CONFLICT (id) DO UPDATE SET name = excluded.name, data = excluded.data",
		Postgres.Upsert("c", "id", cols, update))
	assert.Equal(t,
		"INSERT INTO c (id, name, data) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE name = VALUES(name), data = VALUES(data)",
		MySQL.Upsert("c", "id", cols, update))
	assert.Equal(t,
		"INSERT INTO c (id, name, data) VALUES (?, ?, ?) ON CONFLICT (id) DO UPDATE SET name = excluded.name, data = excluded.data",
		SQLite.Upsert("c", "id", cols, update))
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"postgres unique", &pq.Error{Code: "23505"}, true},
		{"postgres other", &pq.Error{Code: "23503"}, false},
		{"mysql duplicate entry", &mysql.MySQLError{Number: 1062}, true},
		{"mysql other", &mysql.MySQLError{Number: 1213}, false},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, true},
		{"sqlite primary key", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}, true},
		{"sqlite not null", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull}, false},
		{"wrapped", fmt.Errorf("save: %w", &pq.Error{Code: "23505"}), true},
		{"plain", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err))
		})
	}
}
