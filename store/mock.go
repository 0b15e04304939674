package store

import (
	"context"
	"sync"

	"github.com/getpup/schemamigrate"
)

// MockSchemaStore is a configurable mock implementation of SchemaStore
// for use in tests. It allows setting up expected return values, tracking method
// calls, and injecting errors for testing error paths.
//
// When a ...Func hook is not set the mock falls back to Backing, if any,
// and otherwise behaves like an empty store.
type MockSchemaStore struct {
	mu sync.RWMutex

	// Backing receives calls that have no hook configured.
	Backing SchemaStore

	// GetCollectionFunc is called by GetCollection if set.
	GetCollectionFunc func(ctx context.Context, idOrName string) (*schemamigrate.Collection, error)

	// SaveCollectionFunc is called by SaveCollection if set.
	SaveCollectionFunc func(ctx context.Context, c *schemamigrate.Collection) error

	// ListCollectionsFunc is called by ListCollections if set.
	ListCollectionsFunc func(ctx context.Context) ([]*schemamigrate.Collection, error)

	// DeleteCollectionFunc is called by DeleteCollection if set.
	DeleteCollectionFunc func(ctx context.Context, id string) error

	// Call tracking
	GetCollectionCalls    []GetCollectionCall
	SaveCollectionCalls   []SaveCollectionCall
	ListCollectionsCalls  int
	DeleteCollectionCalls []DeleteCollectionCall
}

// Call tracking structs
type GetCollectionCall struct {
	IDOrName string
}

type SaveCollectionCall struct {
	Collection *schemamigrate.Collection
}

type DeleteCollectionCall struct {
	ID string
}

// NewMockSchemaStore creates a new mock schema store. backing may be nil.
func NewMockSchemaStore(backing SchemaStore) *MockSchemaStore {
	return &MockSchemaStore{Backing: backing}
}

// GetCollection implements SchemaStore.
func (m *MockSchemaStore) GetCollection(ctx context.Context, idOrName string) (*schemamigrate.Collection, error) {
	m.mu.Lock()
	m.GetCollectionCalls = append(m.GetCollectionCalls, GetCollectionCall{IDOrName: idOrName})
	m.mu.Unlock()

	if m.GetCollectionFunc != nil {
		return m.GetCollectionFunc(ctx, idOrName)
	}
	if m.Backing != nil {
		return m.Backing.GetCollection(ctx, idOrName)
	}

	return nil, ErrNotFound
}

// SaveCollection implements SchemaStore.
func (m *MockSchemaStore) SaveCollection(ctx context.Context, c *schemamigrate.Collection) error {
	m.mu.Lock()
	m.SaveCollectionCalls = append(m.SaveCollectionCalls, SaveCollectionCall{Collection: c.Clone()})
	m.mu.Unlock()

	if m.SaveCollectionFunc != nil {
		return m.SaveCollectionFunc(ctx, c)
	}
	if m.Backing != nil {
		return m.Backing.SaveCollection(ctx, c)
	}

	return nil
}

// ListCollections implements SchemaStore.
func (m *MockSchemaStore) ListCollections(ctx context.Context) ([]*schemamigrate.Collection, error) {
	m.mu.Lock()
	m.ListCollectionsCalls++
	m.mu.Unlock()

	if m.ListCollectionsFunc != nil {
		return m.ListCollectionsFunc(ctx)
	}
	if m.Backing != nil {
		return m.Backing.ListCollections(ctx)
	}

	return []*schemamigrate.Collection{}, nil
}

// DeleteCollection implements SchemaStore.
func (m *MockSchemaStore) DeleteCollection(ctx context.Context, id string) error {
	m.mu.Lock()
	m.DeleteCollectionCalls = append(m.DeleteCollectionCalls, DeleteCollectionCall{ID: id})
	m.mu.Unlock()

	if m.DeleteCollectionFunc != nil {
		return m.DeleteCollectionFunc(ctx, id)
	}
	if m.Backing != nil {
		return m.Backing.DeleteCollection(ctx, id)
	}

	return ErrNotFound
}

// SaveCount returns the number of SaveCollection calls.
func (m *MockSchemaStore) SaveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.SaveCollectionCalls)
}

// Reset clears the call history.
func (m *MockSchemaStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCollectionCalls = nil
	m.SaveCollectionCalls = nil
	m.ListCollectionsCalls = 0
	m.DeleteCollectionCalls = nil
}

var _ SchemaStore = (*MockSchemaStore)(nil)
