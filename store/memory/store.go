package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/getpup/schemamigrate"
	"github.com/getpup/schemamigrate/store"
)

// Store is an in-memory implementation of SchemaStore.
// It provides thread-safe access to collections using a sync.RWMutex and
// copies collections on the way in and out.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*schemamigrate.Collection // collectionID -> collection
	names       map[string]string                    // name -> collectionID
}

// New creates a new in-memory store holding copies of the given collections.
func New(collections ...*schemamigrate.Collection) *Store {
	s := &Store{
		collections: make(map[string]*schemamigrate.Collection),
		names:       make(map[string]string),
	}
	for _, c := range collections {
		s.collections[c.ID] = c.Clone()
		s.names[c.Name] = c.ID
	}
	return s
}

// Snapshot copies every collection of src into a new in-memory store.
func Snapshot(ctx context.Context, src store.SchemaStore) (*Store, error) {
	collections, err := src.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	return New(collections...), nil
}

// GetCollection returns a copy of the collection matching idOrName.
// Returns store.ErrNotFound if no collection matches.
func (s *Store) GetCollection(ctx context.Context, idOrName string) (*schemamigrate.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.collections[idOrName]; ok {
		return c.Clone(), nil
	}
	if id, ok := s.names[idOrName]; ok {
		return s.collections[id].Clone(), nil
	}

	return nil, store.ErrNotFound
}

// SaveCollection inserts or replaces the collection with c.ID.
// Returns store.ErrNameConflict if another collection already uses c.Name.
func (s *Store) SaveCollection(ctx context.Context, c *schemamigrate.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.names[c.Name]; ok && owner != c.ID {
		return store.ErrNameConflict
	}

	if prev, ok := s.collections[c.ID]; ok {
		delete(s.names, prev.Name)
	}
	s.collections[c.ID] = c.Clone()
	s.names[c.Name] = c.ID

	return nil
}

// ListCollections returns copies of all collections ordered by id.
func (s *Store) ListCollections(ctx context.Context) ([]*schemamigrate.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	collections := make([]*schemamigrate.Collection, 0, len(s.collections))
	for _, c := range s.collections {
		collections = append(collections, c.Clone())
	}
	sort.Slice(collections, func(i, j int) bool {
		return collections[i].ID < collections[j].ID
	})

	return collections, nil
}

// DeleteCollection removes the collection with the given id.
// Returns store.ErrNotFound if it does not exist.
func (s *Store) DeleteCollection(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[id]
	if !ok {
		return store.ErrNotFound
	}

	delete(s.names, c.Name)
	delete(s.collections, id)

	return nil
}

var _ store.SchemaStore = (*Store)(nil)
