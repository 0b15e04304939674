// Package lock provides the run-level lock that keeps two migration runs from
// touching the same schema store at once.
package lock

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
)

// ErrHeld indicates the lock is held by another owner.
var ErrHeld = errors.New("lock is held by another owner")

// Locker provides mutual exclusion for migration runs across processes.
type Locker interface {
	// Acquire obtains the lock for key. The returned release function must be
	// called to release the lock; it is safe to call more than once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// WatchedLocker is a Locker whose hold can end before release, as a lease
// does when its heartbeats stop landing. The lost channel is closed once the
// hold is gone; callers check it before doing more work under the lock.
type WatchedLocker interface {
	Locker
	AcquireWatched(ctx context.Context, key string) (release func(), lost <-chan struct{}, err error)
}

// MutexLocker is a process-local Locker. It suits in-memory and bbolt stores,
// where bbolt's own file lock already keeps other processes out.
type MutexLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewMutexLocker creates a process-local locker.
func NewMutexLocker() *MutexLocker {
	return &MutexLocker{slots: make(map[string]chan struct{})}
}

// Acquire blocks until key is free or ctx is done.
func (l *MutexLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire mutex lock: %w", ctx.Err())
	}

	var once sync.Once
	return func() { once.Do(func() { <-slot }) }, nil
}

// hashLockKey produces a stable non-negative int64 from key for use as a
// PostgreSQL advisory lock id.
func hashLockKey(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF)
}

var _ Locker = (*MutexLocker)(nil)
