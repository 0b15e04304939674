package lock

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// PostgresLocker implements Locker with PostgreSQL session advisory locks.
// Advisory locks belong to a session, so the lock pins one connection from
// the pool until it is released.
type PostgresLocker struct {
	db *sql.DB
}

// NewPostgresLocker creates a new PostgresLocker.
func NewPostgresLocker(db *sql.DB) *PostgresLocker {
	return &PostgresLocker{db: db}
}

// Acquire tries to take the advisory lock derived from key without waiting.
// Returns ErrHeld if another session holds it.
func (l *PostgresLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lockID := hashLockKey(key)

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pg_try_advisory_lock(%d): %w", lockID, err)
	}
	if !acquired {
		conn.Close()
		return nil, ErrHeld
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
			conn.Close()
		})
	}
	return release, nil
}

// MySQLLocker implements Locker with MySQL named locks (GET_LOCK).
// Named locks belong to a session, so the lock pins one connection.
type MySQLLocker struct {
	db      *sql.DB
	timeout time.Duration
}

// NewMySQLLocker creates a MySQLLocker that waits up to timeout for the lock.
// A zero timeout fails immediately when the lock is held.
func NewMySQLLocker(db *sql.DB, timeout time.Duration) *MySQLLocker {
	return &MySQLLocker{db: db, timeout: timeout}
}

// Acquire takes the named lock key. Returns ErrHeld on timeout.
func (l *MySQLLocker) Acquire(ctx context.Context, key string) (func(), error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	var result sql.NullInt64
	if err := conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, ?)`, key, int64(l.timeout.Seconds())).Scan(&result); err != nil {
		conn.Close()
		return nil, fmt.Errorf("GET_LOCK(%s): %w", key, err)
	}
	if !result.Valid {
		conn.Close()
		return nil, fmt.Errorf("GET_LOCK(%s): server returned NULL", key)
	}
	if result.Int64 != 1 {
		conn.Close()
		return nil, ErrHeld
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			_, _ = conn.ExecContext(context.Background(), `SELECT RELEASE_LOCK(?)`, key)
			conn.Close()
		})
	}
	return release, nil
}

var (
	_ Locker = (*PostgresLocker)(nil)
	_ Locker = (*MySQLLocker)(nil)
)
