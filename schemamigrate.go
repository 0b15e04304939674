// Package schemamigrate holds the schema model, migration definitions and the
// error taxonomy shared by the migration engine and its storage adapters.
package schemamigrate

import "context"

// Migrator advances or rolls back the schema of a single schema store.
type Migrator interface {
	// Up applies, in ascending identifier order, every registered migration
	// newer than the last applied one, up to and including target.
	// A zero target means the latest registered migration.
	//
	// Up returns a *RunError if any step fails. Running Up again after the
	// cause is fixed resumes after the last applied migration.
	Up(ctx context.Context, target Identifier) (Result, error)

	// Down reverts, in descending identifier order, every applied migration
	// with an identifier strictly greater than target.
	Down(ctx context.Context, target Identifier) (Result, error)

	// Status lists applied and pending migrations.
	Status(ctx context.Context) ([]MigrationStatus, error)
}

// Result summarises a completed Up or Down call.
type Result struct {
	// Direction is the direction that was run.
	Direction Direction

	// Executed lists the identifiers applied (Up) or reverted (Down), in execution order.
	Executed []Identifier

	// LastApplied is the highest identifier recorded in the ledger after the run,
	// or zero if none.
	LastApplied Identifier
}

// Logger is the structured logger used across the engine.
// Arguments after msg are alternating keys and values.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...interface{})
	Info(ctx context.Context, msg string, args ...interface{})
	Error(ctx context.Context, msg string, args ...interface{})
}
