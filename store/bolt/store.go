// Package bolt persists collection schemas in a bbolt database file.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"

	bbolt "go.etcd.io/bbolt"

	"github.com/getpup/schemamigrate"
	"github.com/getpup/schemamigrate/store"
)

var (
	collectionsBucket     = []byte("collectionsv1")
	collectionNamesBucket = []byte("collectionnamesv1")
)

// Store is a bbolt implementation of SchemaStore.
// Collections are JSON documents keyed by id; a second bucket indexes names.
type Store struct {
	db *bbolt.DB
}

// New creates the store buckets in db if they are missing.
func New(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(collectionsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(collectionNamesBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize collection buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// GetCollection returns the collection whose id or name equals idOrName.
// Returns store.ErrNotFound if no collection matches.
func (s *Store) GetCollection(ctx context.Context, idOrName string) (*schemamigrate.Collection, error) {
	var c *schemamigrate.Collection
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(collectionsBucket).Get([]byte(idOrName))
		if data == nil {
			id := tx.Bucket(collectionNamesBucket).Get([]byte(idOrName))
			if id == nil {
				return store.ErrNotFound
			}
			data = tx.Bucket(collectionsBucket).Get(id)
		}
		if data == nil {
			return store.ErrNotFound
		}

		var err error
		c, err = decode(data)
		return err
	})
	if err != nil {
		return nil, err
	}

	return c, nil
}

// SaveCollection inserts or replaces the collection with c.ID.
// Returns store.ErrNameConflict if another collection already uses c.Name.
func (s *Store) SaveCollection(ctx context.Context, c *schemamigrate.Collection) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode collection: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		collections := tx.Bucket(collectionsBucket)
		names := tx.Bucket(collectionNamesBucket)

		if owner := names.Get([]byte(c.Name)); owner != nil && string(owner) != c.ID {
			return store.ErrNameConflict
		}

		if prev := collections.Get([]byte(c.ID)); prev != nil {
			old, err := decode(prev)
			if err != nil {
				return err
			}
			if err := names.Delete([]byte(old.Name)); err != nil {
				return err
			}
		}

		if err := collections.Put([]byte(c.ID), data); err != nil {
			return fmt.Errorf("failed to save collection: %w", err)
		}
		return names.Put([]byte(c.Name), []byte(c.ID))
	})
}

// ListCollections returns all collections ordered by id.
func (s *Store) ListCollections(ctx context.Context) ([]*schemamigrate.Collection, error) {
	collections := []*schemamigrate.Collection{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(collectionsBucket).ForEach(func(k, v []byte) error {
			c, err := decode(v)
			if err != nil {
				return err
			}
			collections = append(collections, c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return collections, nil
}

// DeleteCollection removes the collection with the given id.
// Returns store.ErrNotFound if it does not exist.
func (s *Store) DeleteCollection(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		collections := tx.Bucket(collectionsBucket)

		data := collections.Get([]byte(id))
		if data == nil {
			return store.ErrNotFound
		}
		c, err := decode(data)
		if err != nil {
			return err
		}

		if err := tx.Bucket(collectionNamesBucket).Delete([]byte(c.Name)); err != nil {
			return err
		}
		return collections.Delete([]byte(id))
	})
}

func decode(data []byte) (*schemamigrate.Collection, error) {
	var c schemamigrate.Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode collection: %w", err)
	}
	return &c, nil
}

var _ store.SchemaStore = (*Store)(nil)
