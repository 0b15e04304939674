// Package store defines the schema store contract consumed by the migration
// engine, together with a configurable mock for tests.
package store

import (
	"context"

	"github.com/getpup/schemamigrate"
)

// SchemaStore provides access to the persisted collection schemas.
// The store exclusively owns collection state: values passed in are copied and
// values returned may be modified by the caller without affecting the store.
type SchemaStore interface {
	// GetCollection returns the collection whose id or name equals idOrName.
	// Ids are matched before names.
	// Returns schemamigrate.ErrCollectionNotFound if no collection matches.
	GetCollection(ctx context.Context, idOrName string) (*schemamigrate.Collection, error)

	// SaveCollection inserts or replaces the collection with c.ID.
	// Returns ErrNameConflict if another collection already uses c.Name.
	SaveCollection(ctx context.Context, c *schemamigrate.Collection) error

	// ListCollections returns all collections ordered by id.
	// Returns an empty slice if the store holds no collections.
	ListCollections(ctx context.Context) ([]*schemamigrate.Collection, error)

	// DeleteCollection removes the collection with the given id.
	// Returns schemamigrate.ErrCollectionNotFound if it does not exist.
	DeleteCollection(ctx context.Context, id string) error
}
