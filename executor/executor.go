// Package executor runs a single migration step against a schema store.
package executor

import (
	"context"

	"github.com/getpup/schemamigrate"
	"github.com/getpup/schemamigrate/store"
)

// Runner executes one migration in one direction.
// This interface allows for mock implementations in tests.
type Runner interface {
	Run(ctx context.Context, def schemamigrate.Definition, dir schemamigrate.Direction) (Outcome, error)
}

// Outcome lists the collections a step persisted.
type Outcome struct {
	Saved   []string
	Deleted []string
}

// Writes returns the number of persisted collection changes.
func (o Outcome) Writes() int {
	return len(o.Saved) + len(o.Deleted)
}

// Config configures the executor.
type Config struct {
	// Store is the schema store migrations run against (required).
	Store store.SchemaStore

	// Logger is an optional logger for observability.
	Logger schemamigrate.Logger
}

// Executor runs migrations through a staged SchemaTx: the migration function
// edits copies, the result is validated, and only then is it persisted.
type Executor struct {
	config Config
}

// Compile-time check that Executor implements Runner.
var _ Runner = (*Executor)(nil)

// New creates a new Executor with the given configuration.
func New(cfg Config) *Executor {
	return &Executor{
		config: cfg,
	}
}

// Run executes def in direction dir.
//
// A failing migration function or a failed validation returns before anything
// is written. A persist failure returns a *schemamigrate.StoreError; its
// Partial flag tells whether some collections were already written.
func (e *Executor) Run(ctx context.Context, def schemamigrate.Definition, dir schemamigrate.Direction) (Outcome, error) {
	fn := def.Func(dir)
	if fn == nil {
		return Outcome{}, &schemamigrate.DefinitionError{ID: def.ID, Err: schemamigrate.ErrInvalidDefinition}
	}

	tx := newStage(e.config.Store)

	if err := fn(ctx, tx); err != nil {
		return Outcome{}, err
	}

	if err := tx.validate(ctx); err != nil {
		return Outcome{}, err
	}

	out, err := tx.commit(ctx)
	if err != nil {
		return out, err
	}

	if e.config.Logger != nil {
		e.config.Logger.Debug(ctx, "migration step persisted",
			"migration", def.ID,
			"direction", dir,
			"saved", out.Saved,
			"deleted", out.Deleted)
	}

	return out, nil
}
