package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/getpup/schemamigrate/pkg/ddl"
)

// ErrLeaseLost indicates a heartbeat found the lease owned by someone else or gone.
var ErrLeaseLost = errors.New("lease lost")

// LeaseStore persists heartbeated leases, one per key.
// It backs lifecycle.Manager on databases without session locks.
type LeaseStore interface {
	// TryAcquire takes the lease for key if it is free or its last heartbeat
	// is older than staleBefore. Returns false if a live lease exists.
	TryAcquire(ctx context.Context, key, owner string, now, staleBefore time.Time) (bool, error)

	// Heartbeat refreshes the lease. Returns ErrLeaseLost if owner no longer holds it.
	Heartbeat(ctx context.Context, key, owner string, now time.Time) error

	// Release drops the lease if owner holds it.
	Release(ctx context.Context, key, owner string) error
}

type lease struct {
	owner     string
	heartbeat time.Time
}

// MemoryLeaseStore is an in-memory LeaseStore for tests and single-process use.
type MemoryLeaseStore struct {
	mu     sync.Mutex
	leases map[string]lease
}

// NewMemoryLeaseStore creates an empty in-memory lease store.
func NewMemoryLeaseStore() *MemoryLeaseStore {
	return &MemoryLeaseStore{leases: make(map[string]lease)}
}

func (s *MemoryLeaseStore) TryAcquire(ctx context.Context, key, owner string, now, staleBefore time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.leases[key]; ok && !l.heartbeat.Before(staleBefore) {
		return false, nil
	}
	s.leases[key] = lease{owner: owner, heartbeat: now}
	return true, nil
}

func (s *MemoryLeaseStore) Heartbeat(ctx context.Context, key, owner string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leases[key]
	if !ok || l.owner != owner {
		return ErrLeaseLost
	}
	l.heartbeat = now
	s.leases[key] = l
	return nil
}

func (s *MemoryLeaseStore) Release(ctx context.Context, key, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.leases[key]; ok && l.owner == owner {
		delete(s.leases, key)
	}
	return nil
}

// SQLLeaseStore is a LeaseStore backed by the leases table from package ddl.
type SQLLeaseStore struct {
	db      *sql.DB
	dialect ddl.Dialect
	table   string
}

// NewSQLLeaseStore creates a lease store with default table names.
func NewSQLLeaseStore(db *sql.DB, dialect ddl.Dialect) *SQLLeaseStore {
	return NewSQLLeaseStoreWithConfig(db, dialect, ddl.DefaultConfig())
}

// NewSQLLeaseStoreWithConfig creates a lease store with custom table names.
func NewSQLLeaseStoreWithConfig(db *sql.DB, dialect ddl.Dialect, config ddl.Config) *SQLLeaseStore {
	return &SQLLeaseStore{
		db:      db,
		dialect: dialect,
		table:   config.Tables(dialect).Leases,
	}
}

// TryAcquire removes a stale lease for key, then inserts a new one. A unique
// violation on insert means a live lease exists.
func (s *SQLLeaseStore) TryAcquire(ctx context.Context, key, owner string, now, staleBefore time.Time) (bool, error) {
	cleanup := s.dialect.Rebind(fmt.Sprintf("DELETE FROM %s WHERE lock_key = ? AND heartbeat_at < ?", s.table))
	if _, err := s.db.ExecContext(ctx, cleanup, key, staleBefore.UTC()); err != nil {
		return false, fmt.Errorf("failed to clear stale lease: %w", err)
	}

	insert := s.dialect.Rebind(fmt.Sprintf(
		"INSERT INTO %s (lock_key, owner, acquired_at, heartbeat_at) VALUES (?, ?, ?, ?)", s.table))
	_, err := s.db.ExecContext(ctx, insert, key, owner, now.UTC(), now.UTC())
	if ddl.IsUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert lease: %w", err)
	}

	return true, nil
}

func (s *SQLLeaseStore) Heartbeat(ctx context.Context, key, owner string, now time.Time) error {
	query := s.dialect.Rebind(fmt.Sprintf("UPDATE %s SET heartbeat_at = ? WHERE lock_key = ? AND owner = ?", s.table))

	result, err := s.db.ExecContext(ctx, query, now.UTC(), key, owner)
	if err != nil {
		return fmt.Errorf("failed to heartbeat lease: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrLeaseLost
	}

	return nil
}

func (s *SQLLeaseStore) Release(ctx context.Context, key, owner string) error {
	query := s.dialect.Rebind(fmt.Sprintf("DELETE FROM %s WHERE lock_key = ? AND owner = ?", s.table))

	if _, err := s.db.ExecContext(ctx, query, key, owner); err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}

var (
	_ LeaseStore = (*MemoryLeaseStore)(nil)
	_ LeaseStore = (*SQLLeaseStore)(nil)
)
