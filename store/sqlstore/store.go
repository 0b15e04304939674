// Package sqlstore persists collection schemas in a SQL table, one JSON
// document per collection, on PostgreSQL, MySQL or SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/getpup/schemamigrate"
	"github.com/getpup/schemamigrate/pkg/ddl"
	"github.com/getpup/schemamigrate/store"
)

// Store is a SQL implementation of SchemaStore.
// The collections table is created by ddl.Statements or a generated migration file.
type Store struct {
	db      *sql.DB
	dialect ddl.Dialect
	table   string
}

// New creates a new SQL store with default table names.
func New(db *sql.DB, dialect ddl.Dialect) *Store {
	config := ddl.DefaultConfig()
	return NewWithConfig(db, dialect, config)
}

// NewWithConfig creates a new SQL store with custom table names.
func NewWithConfig(db *sql.DB, dialect ddl.Dialect, config ddl.Config) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		table:   config.Tables(dialect).Collections,
	}
}

// GetCollection returns the collection whose id or name equals idOrName.
// Returns store.ErrNotFound if no collection matches.
func (s *Store) GetCollection(ctx context.Context, idOrName string) (*schemamigrate.Collection, error) {
	c, err := s.getBy(ctx, "id", idOrName)
	if errors.Is(err, store.ErrNotFound) {
		c, err = s.getBy(ctx, "name", idOrName)
	}
	return c, err
}

func (s *Store) getBy(ctx context.Context, column, value string) (*schemamigrate.Collection, error) {
	query := s.dialect.Rebind(fmt.Sprintf("SELECT data FROM %s WHERE %s = ?", s.table, column))

	var data []byte
	err := s.db.QueryRowContext(ctx, query, value).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}

	return decode(data)
}

// SaveCollection inserts or replaces the collection with c.ID.
// Returns store.ErrNameConflict if another collection already uses c.Name.
func (s *Store) SaveCollection(ctx context.Context, c *schemamigrate.Collection) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode collection: %w", err)
	}

	query := s.dialect.Rebind(s.dialect.Upsert(s.table, "id",
		[]string{"id", "name", "data"},
		[]string{"name", "data"},
	))

	_, err = s.db.ExecContext(ctx, query, c.ID, c.Name, string(data))
	if ddl.IsUniqueViolation(err) {
		return store.ErrNameConflict
	}
	if err != nil {
		return fmt.Errorf("failed to save collection: %w", err)
	}

	return nil
}

// ListCollections returns all collections ordered by id.
func (s *Store) ListCollections(ctx context.Context) ([]*schemamigrate.Collection, error) {
	query := fmt.Sprintf("SELECT data FROM %s ORDER BY id", s.table)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	collections := []*schemamigrate.Collection{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		c, err := decode(data)
		if err != nil {
			return nil, err
		}
		collections = append(collections, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collections: %w", err)
	}

	return collections, nil
}

// DeleteCollection removes the collection with the given id.
// Returns store.ErrNotFound if it does not exist.
func (s *Store) DeleteCollection(ctx context.Context, id string) error {
	query := s.dialect.Rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.table))

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return store.ErrNotFound
	}

	return nil
}

func decode(data []byte) (*schemamigrate.Collection, error) {
	var c schemamigrate.Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode collection: %w", err)
	}
	return &c, nil
}

var _ store.SchemaStore = (*Store)(nil)
