package lock

import (
	"context"
	"sync"
)

// MockLocker is a configurable mock implementation of Locker for use in tests.
// Without AcquireFunc every Acquire succeeds.
type MockLocker struct {
	mu sync.Mutex

	AcquireFunc func(ctx context.Context, key string) (func(), error)

	// Lost is handed out by AcquireWatched. Close it to simulate a lost hold.
	Lost chan struct{}

	// Call tracking
	AcquireCalls []string
	Acquired     int
	Releases     int
}

// NewMockLocker creates a new mock locker.
func NewMockLocker() *MockLocker {
	return &MockLocker{}
}

// Acquire implements Locker.
func (m *MockLocker) Acquire(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	m.AcquireCalls = append(m.AcquireCalls, key)
	m.mu.Unlock()

	if m.AcquireFunc != nil {
		release, err := m.AcquireFunc(ctx, key)
		if err != nil {
			return nil, err
		}
		return m.track(release), nil
	}

	return m.track(func() {}), nil
}

// AcquireWatched implements WatchedLocker.
func (m *MockLocker) AcquireWatched(ctx context.Context, key string) (func(), <-chan struct{}, error) {
	release, err := m.Acquire(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	return release, m.Lost, nil
}

func (m *MockLocker) track(release func()) func() {
	m.mu.Lock()
	m.Acquired++
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.Releases++
			m.mu.Unlock()
			if release != nil {
				release()
			}
		})
	}
}

// Held reports whether an acquired lock has not been released yet.
func (m *MockLocker) Held() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Acquired > m.Releases
}

var _ WatchedLocker = (*MockLocker)(nil)
