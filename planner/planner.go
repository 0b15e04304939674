// Package planner computes which migrations a run will execute. It is pure:
// it reads sorted definitions and ledger state and never touches a store.
package planner

import (
	"sort"

	"github.com/getpup/schemamigrate"
	"github.com/getpup/schemamigrate/ledger"
)

// Plan is the ordered list of definitions a run will execute.
type Plan struct {
	// Direction is the direction every step runs in.
	Direction schemamigrate.Direction

	// Steps are ascending for up and descending for down.
	Steps []schemamigrate.Definition

	// LastApplied is the highest applied identifier when the plan was made.
	LastApplied schemamigrate.Identifier

	// Target is the resolved target identifier.
	Target schemamigrate.Identifier
}

// Empty reports whether the plan has nothing to execute.
func (p Plan) Empty() bool {
	return len(p.Steps) == 0
}

// IDs returns the identifiers of the plan steps in execution order.
func (p Plan) IDs() []schemamigrate.Identifier {
	ids := make([]schemamigrate.Identifier, len(p.Steps))
	for i, d := range p.Steps {
		ids[i] = d.ID
	}
	return ids
}

// Up plans an up run. defs must be sorted ascending by identifier.
// A zero target means the latest definition. Only definitions newer than the
// last applied identifier are pending; older unapplied ones are reported by
// Status as out of order and never applied here.
func Up(defs []schemamigrate.Definition, applied map[schemamigrate.Identifier]struct{}, target schemamigrate.Identifier) Plan {
	last := ledger.LastApplied(applied)
	if target == 0 && len(defs) > 0 {
		target = defs[len(defs)-1].ID
	}

	plan := Plan{Direction: schemamigrate.DirectionUp, LastApplied: last, Target: target}
	for _, d := range defs {
		if d.ID <= last || d.ID > target {
			continue
		}
		if _, ok := applied[d.ID]; ok {
			continue
		}
		plan.Steps = append(plan.Steps, d)
	}

	return plan
}

// Down plans a down run that reverts every applied identifier strictly
// greater than target, newest first. defs must be sorted ascending.
// Returns a *schemamigrate.DefinitionError wrapping ErrMissingDefinition if
// an identifier to revert has no definition.
func Down(defs []schemamigrate.Definition, applied map[schemamigrate.Identifier]struct{}, target schemamigrate.Identifier) (Plan, error) {
	byID := make(map[schemamigrate.Identifier]schemamigrate.Definition, len(defs))
	for _, d := range defs {
		byID[d.ID] = d
	}

	ids := make([]schemamigrate.Identifier, 0, len(applied))
	for id := range applied {
		if id > target {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	plan := Plan{Direction: schemamigrate.DirectionDown, LastApplied: ledger.LastApplied(applied), Target: target}
	for _, id := range ids {
		d, ok := byID[id]
		if !ok {
			return Plan{}, &schemamigrate.DefinitionError{ID: id, Err: schemamigrate.ErrMissingDefinition}
		}
		plan.Steps = append(plan.Steps, d)
	}

	return plan, nil
}

// Status merges definitions and ledger entries into one list sorted by identifier.
func Status(defs []schemamigrate.Definition, entries []schemamigrate.LedgerEntry) []schemamigrate.MigrationStatus {
	byID := make(map[schemamigrate.Identifier]schemamigrate.LedgerEntry, len(entries))
	var last schemamigrate.Identifier
	for _, e := range entries {
		byID[e.ID] = e
		if e.ID > last {
			last = e.ID
		}
	}

	statuses := make([]schemamigrate.MigrationStatus, 0, len(defs)+len(entries))
	known := make(map[schemamigrate.Identifier]struct{}, len(defs))
	for _, d := range defs {
		known[d.ID] = struct{}{}

		s := schemamigrate.MigrationStatus{ID: d.ID, Name: d.Name, State: schemamigrate.StateUnapplied}
		if e, ok := byID[d.ID]; ok {
			appliedAt := e.AppliedAt
			s.State = schemamigrate.StateApplied
			s.AppliedAt = &appliedAt
		} else if d.ID < last {
			s.OutOfOrder = true
		}
		statuses = append(statuses, s)
	}

	for _, e := range entries {
		if _, ok := known[e.ID]; ok {
			continue
		}
		appliedAt := e.AppliedAt
		statuses = append(statuses, schemamigrate.MigrationStatus{
			ID:        e.ID,
			Name:      e.Name,
			State:     schemamigrate.StateApplied,
			AppliedAt: &appliedAt,
			Orphaned:  true,
		})
	}

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ID < statuses[j].ID })
	return statuses
}
