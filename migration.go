package schemamigrate

import "context"

// SchemaTx is the schema handle a migration function operates on.
// Reads return copies that the migration may edit freely; nothing reaches the
// schema store until the migration function returns successfully.
type SchemaTx interface {
	// FindCollectionByNameOrID returns a copy of the collection with the given
	// id or name. Returns ErrUnknownCollection if none exists.
	FindCollectionByNameOrID(ctx context.Context, idOrName string) (*Collection, error)

	// ListCollections returns copies of all collections.
	ListCollections(ctx context.Context) ([]*Collection, error)

	// Save stages c (new or existing, matched by ID) after validating it.
	Save(ctx context.Context, c *Collection) error

	// Delete stages the removal of the collection with the given id or name.
	Delete(ctx context.Context, idOrName string) error
}

// MigrationFunc is one direction of a migration.
type MigrationFunc func(ctx context.Context, tx SchemaTx) error

// Definition is a named, identifier-ordered, reversible schema transformation.
//
// Down executed after Up must restore every collection Up touched exactly:
// field set, field order and rule strings.
type Definition struct {
	// ID orders the definition. It must be positive and unique.
	ID Identifier

	// Name describes the migration, e.g. "updated_checklists".
	Name string

	// Up applies the migration.
	Up MigrationFunc

	// Down reverts the migration.
	Down MigrationFunc
}

// Func returns the migration function for the given direction.
func (d Definition) Func(dir Direction) MigrationFunc {
	if dir == DirectionDown {
		return d.Down
	}
	return d.Up
}

// Validate checks that the definition can be ordered and executed.
func (d Definition) Validate() error {
	if d.ID <= 0 {
		return &DefinitionError{ID: d.ID, Err: ErrInvalidDefinition}
	}
	if d.Up == nil || d.Down == nil {
		return &DefinitionError{ID: d.ID, Err: ErrInvalidDefinition}
	}
	return nil
}
