package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/getpup/schemamigrate"
	"github.com/getpup/schemamigrate/executor"
	"github.com/getpup/schemamigrate/ledger"
	"github.com/getpup/schemamigrate/planner"
	"github.com/getpup/schemamigrate/store/memory"
)

// ErrAsymmetric indicates Down did not restore what Up changed.
var ErrAsymmetric = errors.New("down does not restore the schema changed by up")

// AsymmetryError reports the difference Verify found after Up then Down.
type AsymmetryError struct {
	ID   schemamigrate.Identifier
	Diff string
}

func (e *AsymmetryError) Error() string {
	return fmt.Sprintf("migration %s: %v (-before +after):\n%s", e.ID, ErrAsymmetric, e.Diff)
}

func (e *AsymmetryError) Unwrap() error { return ErrAsymmetric }

// Status lists every registered migration and every ledger entry, sorted by
// identifier. It takes no lock.
func (e *Engine) Status(ctx context.Context) ([]schemamigrate.MigrationStatus, error) {
	defs, err := e.config.Definitions.List()
	if err != nil {
		return nil, err
	}

	entries, err := e.config.Ledger.Entries(ctx)
	if err != nil {
		return nil, &schemamigrate.LedgerError{Op: "read", Err: err}
	}

	return planner.Status(defs, entries), nil
}

// Intents returns outstanding journal intents, or nil when the ledger keeps no journal.
func (e *Engine) Intents(ctx context.Context) ([]ledger.Intent, error) {
	journal, ok := e.config.Ledger.(ledger.Journal)
	if !ok {
		return nil, nil
	}

	intents, err := journal.Intents(ctx)
	if err != nil {
		return nil, &schemamigrate.LedgerError{Op: "read", Err: err}
	}
	return intents, nil
}

// Plan returns the steps Up or Down would execute for target, without taking
// the lock or writing anything.
func (e *Engine) Plan(ctx context.Context, dir schemamigrate.Direction, target schemamigrate.Identifier) (planner.Plan, error) {
	applied, err := e.config.Ledger.AppliedIdentifiers(ctx)
	if err != nil {
		return planner.Plan{}, &schemamigrate.LedgerError{Op: "read", Err: err}
	}
	return e.plan(dir, applied, target)
}

// Verify runs every pending migration against an in-memory copy of the store:
// Up, then Down, comparing the schema before and after, then Up again so the
// next migration sees the schema it expects. Neither the store nor the ledger
// is written.
func (e *Engine) Verify(ctx context.Context) error {
	plan, err := e.Plan(ctx, schemamigrate.DirectionUp, 0)
	if err != nil {
		return err
	}
	if plan.Empty() {
		return nil
	}

	snapshot, err := memory.Snapshot(ctx, e.config.Store)
	if err != nil {
		return &schemamigrate.StoreError{Op: "list", Err: err}
	}
	exec := executor.New(executor.Config{Store: snapshot, Logger: e.config.Logger})

	last := plan.LastApplied
	for _, def := range plan.Steps {
		before, err := snapshot.ListCollections(ctx)
		if err != nil {
			return err
		}

		for _, dir := range []schemamigrate.Direction{schemamigrate.DirectionUp, schemamigrate.DirectionDown} {
			if _, err := exec.Run(ctx, def, dir); err != nil {
				return &schemamigrate.RunError{Direction: dir, InProgress: def.ID, LastApplied: last, Err: err}
			}
		}

		after, err := snapshot.ListCollections(ctx)
		if err != nil {
			return err
		}
		if diff := cmp.Diff(before, after, cmpopts.EquateEmpty()); diff != "" {
			return &AsymmetryError{ID: def.ID, Diff: diff}
		}

		if _, err := exec.Run(ctx, def, schemamigrate.DirectionUp); err != nil {
			return &schemamigrate.RunError{Direction: schemamigrate.DirectionUp, InProgress: def.ID, LastApplied: last, Err: err}
		}
		last = def.ID

		if e.config.Logger != nil {
			e.config.Logger.Debug(ctx, "migration verified", "migration", def.ID, "name", def.Name)
		}
	}

	return nil
}

// Resolve forces the ledger state of id and clears its journal intent. It is
// the operator's way out of an InconsistentStateError once the schema store
// has been checked by hand. It runs under the run lock.
func (e *Engine) Resolve(ctx context.Context, id schemamigrate.Identifier, state schemamigrate.MigrationState) error {
	if state != schemamigrate.StateApplied && state != schemamigrate.StateUnapplied {
		return fmt.Errorf("unknown migration state %q", state)
	}

	release, _, err := e.lock(ctx)
	if err != nil {
		return err
	}
	defer release()

	applied, err := e.config.Ledger.AppliedIdentifiers(ctx)
	if err != nil {
		return &schemamigrate.LedgerError{Op: "read", Err: err}
	}
	_, isApplied := applied[id]

	switch {
	case state == schemamigrate.StateApplied && !isApplied:
		entry := schemamigrate.LedgerEntry{ID: id, AppliedAt: e.config.Now()}
		if defs, err := e.config.Definitions.List(); err == nil {
			for _, d := range defs {
				if d.ID == id {
					entry.Name = d.Name
				}
			}
		}
		if err := e.config.Ledger.RecordApplied(ctx, entry); err != nil {
			return &schemamigrate.LedgerError{Op: "record_applied", ID: id, Err: err}
		}
	case state == schemamigrate.StateUnapplied && isApplied:
		if err := e.config.Ledger.RecordReverted(ctx, id); err != nil {
			return &schemamigrate.LedgerError{Op: "record_reverted", ID: id, Err: err}
		}
	}

	if journal, ok := e.config.Ledger.(ledger.Journal); ok {
		if err := journal.EndIntent(ctx, id); err != nil {
			return &schemamigrate.LedgerError{Op: "end_intent", ID: id, Err: err}
		}
	}

	if e.config.Logger != nil {
		e.config.Logger.Info(ctx, "migration resolved", "migration", id, "state", state)
	}
	return nil
}
