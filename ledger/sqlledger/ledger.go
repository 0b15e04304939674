// Package sqlledger stores the migration ledger and its intent journal in SQL
// tables on PostgreSQL, MySQL or SQLite.
//
// MySQL DSNs must set parseTime=true so timestamps scan into time.Time.
package sqlledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/getpup/schemamigrate"
	"github.com/getpup/schemamigrate/ledger"
	"github.com/getpup/schemamigrate/pkg/ddl"
)

// Ledger is a SQL implementation of ledger.Ledger and ledger.Journal.
type Ledger struct {
	db      *sql.DB
	dialect ddl.Dialect
	tables  ddl.Tables
}

// New creates a SQL ledger with default table names.
func New(db *sql.DB, dialect ddl.Dialect) *Ledger {
	return NewWithConfig(db, dialect, ddl.DefaultConfig())
}

// NewWithConfig creates a SQL ledger with custom table names.
func NewWithConfig(db *sql.DB, dialect ddl.Dialect, config ddl.Config) *Ledger {
	return &Ledger{
		db:      db,
		dialect: dialect,
		tables:  config.Tables(dialect),
	}
}

func (l *Ledger) AppliedIdentifiers(ctx context.Context) (map[schemamigrate.Identifier]struct{}, error) {
	query := fmt.Sprintf("SELECT id FROM %s", l.tables.Ledger)

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[schemamigrate.Identifier]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan migration id: %w", err)
		}
		applied[schemamigrate.Identifier(id)] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating applied migrations: %w", err)
	}

	return applied, nil
}

func (l *Ledger) Entries(ctx context.Context) ([]schemamigrate.LedgerEntry, error) {
	query := fmt.Sprintf("SELECT id, name, applied_at FROM %s ORDER BY id", l.tables.Ledger)

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	entries := []schemamigrate.LedgerEntry{}
	for rows.Next() {
		var (
			id int64
			e  schemamigrate.LedgerEntry
		)
		if err := rows.Scan(&id, &e.Name, &e.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.ID = schemamigrate.Identifier(id)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	return entries, nil
}

func (l *Ledger) RecordApplied(ctx context.Context, entry schemamigrate.LedgerEntry) error {
	query := l.dialect.Rebind(fmt.Sprintf("INSERT INTO %s (id, name, applied_at) VALUES (?, ?, ?)", l.tables.Ledger))

	appliedAt := entry.AppliedAt
	if appliedAt.IsZero() {
		appliedAt = time.Now()
	}

	_, err := l.db.ExecContext(ctx, query, int64(entry.ID), entry.Name, appliedAt.UTC())
	if ddl.IsUniqueViolation(err) {
		return ledger.ErrAlreadyRecorded
	}
	if err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return nil
}

func (l *Ledger) RecordReverted(ctx context.Context, id schemamigrate.Identifier) error {
	query := l.dialect.Rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", l.tables.Ledger))

	result, err := l.db.ExecContext(ctx, query, int64(id))
	if err != nil {
		return fmt.Errorf("failed to remove migration: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ledger.ErrNotRecorded
	}

	return nil
}

func (l *Ledger) BeginIntent(ctx context.Context, intent ledger.Intent) error {
	query := l.dialect.Rebind(l.dialect.Upsert(l.tables.Intents, "id",
		[]string{"id", "direction", "started_at"},
		[]string{"direction", "started_at"},
	))

	startedAt := intent.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	if _, err := l.db.ExecContext(ctx, query, int64(intent.ID), string(intent.Direction), startedAt.UTC()); err != nil {
		return fmt.Errorf("failed to record intent: %w", err)
	}
	return nil
}

func (l *Ledger) EndIntent(ctx context.Context, id schemamigrate.Identifier) error {
	query := l.dialect.Rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", l.tables.Intents))

	if _, err := l.db.ExecContext(ctx, query, int64(id)); err != nil {
		return fmt.Errorf("failed to clear intent: %w", err)
	}
	return nil
}

func (l *Ledger) Intents(ctx context.Context) ([]ledger.Intent, error) {
	query := fmt.Sprintf("SELECT id, direction, started_at FROM %s ORDER BY id", l.tables.Intents)

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query intents: %w", err)
	}
	defer rows.Close()

	var intents []ledger.Intent
	for rows.Next() {
		var (
			id        int64
			direction string
			in        ledger.Intent
		)
		if err := rows.Scan(&id, &direction, &in.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan intent: %w", err)
		}
		in.ID = schemamigrate.Identifier(id)
		in.Direction = schemamigrate.Direction(direction)
		intents = append(intents, in)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating intents: %w", err)
	}

	return intents, nil
}

var (
	_ ledger.Ledger  = (*Ledger)(nil)
	_ ledger.Journal = (*Ledger)(nil)
)
