package schemamigrate

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateIdentifier indicates two definitions share an identifier.
	// A registry in this state cannot produce a total order and blocks every run.
	ErrDuplicateIdentifier = errors.New("duplicate migration identifier")

	// ErrMissingDefinition indicates the ledger holds an identifier that no
	// registered definition carries, so it cannot be reverted.
	ErrMissingDefinition = errors.New("applied migration has no definition")

	// ErrInvalidDefinition indicates a definition without a positive identifier
	// or without both migration functions.
	ErrInvalidDefinition = errors.New("invalid migration definition")

	// ErrUnknownField indicates a removal or update referenced a field id the
	// collection does not have.
	ErrUnknownField = errors.New("unknown field")

	// ErrUnknownCollection indicates a relation field (or a lookup) named a
	// collection that does not exist.
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrDuplicateField indicates a field id or name is already in use on the collection.
	ErrDuplicateField = errors.New("duplicate field")

	// ErrInvalidField indicates a structurally invalid field or collection.
	ErrInvalidField = errors.New("invalid field")

	// ErrDuplicateCollection indicates two collections would share a name.
	ErrDuplicateCollection = errors.New("duplicate collection")

	// ErrCollectionNotFound is returned by schema stores when no collection
	// matches the requested id or name.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrLedgerWrite indicates the ledger could not durably record a change.
	ErrLedgerWrite = errors.New("ledger write failed")

	// ErrInconsistentState indicates the schema was mutated but the ledger does
	// not reflect it. An operator must reconcile before any further run.
	ErrInconsistentState = errors.New("schema and ledger are inconsistent")

	// ErrLock indicates the run-level lock could not be acquired.
	ErrLock = errors.New("migration lock not acquired")
)

// DefinitionError reports a registry problem. It is fatal before any run starts.
type DefinitionError struct {
	ID  Identifier
	Err error
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("migration %s: %v", e.ID, e.Err)
}

func (e *DefinitionError) Unwrap() error { return e.Err }

// ValidationError reports a schema validation failure raised before any
// mutation of the migration being processed.
type ValidationError struct {
	// Err is one of ErrUnknownField, ErrUnknownCollection, ErrDuplicateField,
	// ErrInvalidField or ErrDuplicateCollection.
	Err error

	// Collection is the id or name of the collection being validated.
	Collection string

	// FieldID is the offending field id, if any.
	FieldID string

	// Detail is optional free text.
	Detail string
}

// NewValidationError builds a ValidationError for the given sentinel.
func NewValidationError(err error, collection, fieldID, detail string) *ValidationError {
	return &ValidationError{Err: err, Collection: collection, FieldID: fieldID, Detail: detail}
}

func (e *ValidationError) Error() string {
	msg := e.Err.Error()
	if e.Collection != "" {
		msg += fmt.Sprintf(": collection %q", e.Collection)
	}
	if e.FieldID != "" {
		msg += fmt.Sprintf(" field %q", e.FieldID)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StoreError reports a read or write failure against the schema store.
type StoreError struct {
	// Op is the store operation: get, list, save or delete.
	Op string

	// Collection is the id or name involved, if any.
	Collection string

	// Partial is set when some, but not all, staged collections of a
	// migration were persisted before the failure.
	Partial bool

	Err error
}

func (e *StoreError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("schema store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("schema store %s %q: %v", e.Op, e.Collection, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// LedgerError reports a ledger failure. Write failures also match ErrLedgerWrite.
type LedgerError struct {
	// Op is the ledger operation: read, record_applied, record_reverted,
	// begin_intent or end_intent.
	Op string

	// ID is the migration identifier involved, if any.
	ID Identifier

	Err error
}

func (e *LedgerError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("ledger %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *LedgerError) Unwrap() []error {
	if e.Op == "read" {
		return []error{e.Err}
	}
	return []error{ErrLedgerWrite, e.Err}
}

// InconsistentStateError reports that the schema store and the ledger disagree
// about migration ID. It is never reconciled automatically.
type InconsistentStateError struct {
	ID        Identifier
	Direction Direction
	Err       error
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("migration %s (%s): schema and ledger are inconsistent, manual reconciliation required: %v",
		e.ID, e.Direction, e.Err)
}

func (e *InconsistentStateError) Unwrap() []error {
	return []error{ErrInconsistentState, e.Err}
}

// LockError reports a failure to acquire the run-level lock.
type LockError struct {
	Key string
	Err error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("acquire migration lock %q: %v", e.Key, e.Err)
}

func (e *LockError) Unwrap() []error {
	return []error{ErrLock, e.Err}
}

// RunError is returned by Up and Down. It carries the migration in progress
// (zero if the failure happened outside a step) and the last identifier
// confirmed applied in the ledger.
type RunError struct {
	Direction   Direction
	InProgress  Identifier
	LastApplied Identifier
	Err         error
}

func (e *RunError) Error() string {
	if e.InProgress == 0 {
		return fmt.Sprintf("migrate %s (last applied %s): %v", e.Direction, e.LastApplied, e.Err)
	}
	return fmt.Sprintf("migrate %s: migration %s failed (last applied %s): %v",
		e.Direction, e.InProgress, e.LastApplied, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
