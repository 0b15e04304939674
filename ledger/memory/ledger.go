// Package memory provides an in-memory Ledger and Journal.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/getpup/schemamigrate"
	"github.com/getpup/schemamigrate/ledger"
)

// Ledger is an in-memory implementation of ledger.Ledger and ledger.Journal.
type Ledger struct {
	mu      sync.RWMutex
	entries map[schemamigrate.Identifier]schemamigrate.LedgerEntry
	intents map[schemamigrate.Identifier]ledger.Intent
}

// New creates a ledger that already holds the given entries.
func New(entries ...schemamigrate.LedgerEntry) *Ledger {
	l := &Ledger{
		entries: make(map[schemamigrate.Identifier]schemamigrate.LedgerEntry),
		intents: make(map[schemamigrate.Identifier]ledger.Intent),
	}
	for _, e := range entries {
		l.entries[e.ID] = e
	}
	return l
}

func (l *Ledger) AppliedIdentifiers(ctx context.Context) (map[schemamigrate.Identifier]struct{}, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	applied := make(map[schemamigrate.Identifier]struct{}, len(l.entries))
	for id := range l.entries {
		applied[id] = struct{}{}
	}
	return applied, nil
}

func (l *Ledger) Entries(ctx context.Context) ([]schemamigrate.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := make([]schemamigrate.LedgerEntry, 0, len(l.entries))
	for _, e := range l.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

func (l *Ledger) RecordApplied(ctx context.Context, entry schemamigrate.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[entry.ID]; ok {
		return ledger.ErrAlreadyRecorded
	}
	l.entries[entry.ID] = entry
	return nil
}

func (l *Ledger) RecordReverted(ctx context.Context, id schemamigrate.Identifier) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[id]; !ok {
		return ledger.ErrNotRecorded
	}
	delete(l.entries, id)
	return nil
}

func (l *Ledger) BeginIntent(ctx context.Context, intent ledger.Intent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.intents[intent.ID] = intent
	return nil
}

func (l *Ledger) EndIntent(ctx context.Context, id schemamigrate.Identifier) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.intents, id)
	return nil
}

func (l *Ledger) Intents(ctx context.Context) ([]ledger.Intent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	intents := make([]ledger.Intent, 0, len(l.intents))
	for _, in := range l.intents {
		intents = append(intents, in)
	}
	sort.Slice(intents, func(i, j int) bool { return intents[i].ID < intents[j].ID })
	return intents, nil
}

var (
	_ ledger.Ledger  = (*Ledger)(nil)
	_ ledger.Journal = (*Ledger)(nil)
)
