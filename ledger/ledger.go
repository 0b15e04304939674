// Package ledger defines the durable record of applied migrations.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/getpup/schemamigrate"
)

var (
	// ErrAlreadyRecorded indicates RecordApplied was called for an identifier
	// that is already in the ledger.
	ErrAlreadyRecorded = errors.New("migration already recorded as applied")

	// ErrNotRecorded indicates RecordReverted was called for an identifier
	// that is not in the ledger.
	ErrNotRecorded = errors.New("migration not recorded as applied")
)

// Ledger records which migrations have been applied to one schema store.
// Ordering is always derived from identifiers, never from physical insertion order.
type Ledger interface {
	// AppliedIdentifiers returns the set of applied identifiers.
	AppliedIdentifiers(ctx context.Context) (map[schemamigrate.Identifier]struct{}, error)

	// Entries returns every ledger entry sorted by identifier.
	Entries(ctx context.Context) ([]schemamigrate.LedgerEntry, error)

	// RecordApplied durably records entry. The migration is not applied from
	// the caller's point of view until this returns nil.
	// Returns ErrAlreadyRecorded if entry.ID is already present.
	RecordApplied(ctx context.Context, entry schemamigrate.LedgerEntry) error

	// RecordReverted durably removes id.
	// Returns ErrNotRecorded if id is not present.
	RecordReverted(ctx context.Context, id schemamigrate.Identifier) error
}

// Intent marks a migration that has started mutating the schema store and is
// not yet confirmed in the ledger.
type Intent struct {
	ID        schemamigrate.Identifier `json:"id"`
	Direction schemamigrate.Direction  `json:"direction"`
	StartedAt time.Time                `json:"startedAt"`
}

// Journal is an intent log kept next to the ledger. A leftover intent means a
// run stopped between the schema write and the ledger write.
type Journal interface {
	// BeginIntent records intent, replacing any previous intent for the same id.
	BeginIntent(ctx context.Context, intent Intent) error

	// EndIntent clears the intent for id. Clearing a missing intent is not an error.
	EndIntent(ctx context.Context, id schemamigrate.Identifier) error

	// Intents returns outstanding intents sorted by identifier.
	Intents(ctx context.Context) ([]Intent, error)
}

// LastApplied returns the highest identifier in applied, or zero.
func LastApplied(applied map[schemamigrate.Identifier]struct{}) schemamigrate.Identifier {
	var last schemamigrate.Identifier
	for id := range applied {
		if id > last {
			last = id
		}
	}
	return last
}
