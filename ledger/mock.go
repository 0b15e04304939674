package ledger

import (
	"context"
	"sync"

	"github.com/getpup/schemamigrate"
)

// MockLedger is a configurable mock implementation of Ledger and Journal
// for use in tests. Calls without a hook fall through to Backing; a nil
// Backing behaves like an empty ledger that accepts every write.
type MockLedger struct {
	mu sync.RWMutex

	// Backing receives calls that have no hook configured.
	Backing Ledger

	AppliedIdentifiersFunc func(ctx context.Context) (map[schemamigrate.Identifier]struct{}, error)
	EntriesFunc            func(ctx context.Context) ([]schemamigrate.LedgerEntry, error)
	RecordAppliedFunc      func(ctx context.Context, entry schemamigrate.LedgerEntry) error
	RecordRevertedFunc     func(ctx context.Context, id schemamigrate.Identifier) error
	BeginIntentFunc        func(ctx context.Context, intent Intent) error
	EndIntentFunc          func(ctx context.Context, id schemamigrate.Identifier) error
	IntentsFunc            func(ctx context.Context) ([]Intent, error)

	// Call tracking
	RecordAppliedCalls  []schemamigrate.LedgerEntry
	RecordRevertedCalls []schemamigrate.Identifier
	BeginIntentCalls    []Intent
	EndIntentCalls      []schemamigrate.Identifier
	ReadCalls           int
}

// NewMockLedger creates a new mock ledger. backing may be nil.
func NewMockLedger(backing Ledger) *MockLedger {
	return &MockLedger{Backing: backing}
}

// AppliedIdentifiers implements Ledger.
func (m *MockLedger) AppliedIdentifiers(ctx context.Context) (map[schemamigrate.Identifier]struct{}, error) {
	m.mu.Lock()
	m.ReadCalls++
	m.mu.Unlock()

	if m.AppliedIdentifiersFunc != nil {
		return m.AppliedIdentifiersFunc(ctx)
	}
	if m.Backing != nil {
		return m.Backing.AppliedIdentifiers(ctx)
	}
	return map[schemamigrate.Identifier]struct{}{}, nil
}

// Entries implements Ledger.
func (m *MockLedger) Entries(ctx context.Context) ([]schemamigrate.LedgerEntry, error) {
	m.mu.Lock()
	m.ReadCalls++
	m.mu.Unlock()

	if m.EntriesFunc != nil {
		return m.EntriesFunc(ctx)
	}
	if m.Backing != nil {
		return m.Backing.Entries(ctx)
	}
	return []schemamigrate.LedgerEntry{}, nil
}

// RecordApplied implements Ledger.
func (m *MockLedger) RecordApplied(ctx context.Context, entry schemamigrate.LedgerEntry) error {
	m.mu.Lock()
	m.RecordAppliedCalls = append(m.RecordAppliedCalls, entry)
	m.mu.Unlock()

	if m.RecordAppliedFunc != nil {
		return m.RecordAppliedFunc(ctx, entry)
	}
	if m.Backing != nil {
		return m.Backing.RecordApplied(ctx, entry)
	}
	return nil
}

// RecordReverted implements Ledger.
func (m *MockLedger) RecordReverted(ctx context.Context, id schemamigrate.Identifier) error {
	m.mu.Lock()
	m.RecordRevertedCalls = append(m.RecordRevertedCalls, id)
	m.mu.Unlock()

	if m.RecordRevertedFunc != nil {
		return m.RecordRevertedFunc(ctx, id)
	}
	if m.Backing != nil {
		return m.Backing.RecordReverted(ctx, id)
	}
	return nil
}

// BeginIntent implements Journal.
func (m *MockLedger) BeginIntent(ctx context.Context, intent Intent) error {
	m.mu.Lock()
	m.BeginIntentCalls = append(m.BeginIntentCalls, intent)
	m.mu.Unlock()

	if m.BeginIntentFunc != nil {
		return m.BeginIntentFunc(ctx, intent)
	}
	if j, ok := m.Backing.(Journal); ok {
		return j.BeginIntent(ctx, intent)
	}
	return nil
}

// EndIntent implements Journal.
func (m *MockLedger) EndIntent(ctx context.Context, id schemamigrate.Identifier) error {
	m.mu.Lock()
	m.EndIntentCalls = append(m.EndIntentCalls, id)
	m.mu.Unlock()

	if m.EndIntentFunc != nil {
		return m.EndIntentFunc(ctx, id)
	}
	if j, ok := m.Backing.(Journal); ok {
		return j.EndIntent(ctx, id)
	}
	return nil
}

// Intents implements Journal.
func (m *MockLedger) Intents(ctx context.Context) ([]Intent, error) {
	if m.IntentsFunc != nil {
		return m.IntentsFunc(ctx)
	}
	if j, ok := m.Backing.(Journal); ok {
		return j.Intents(ctx)
	}
	return nil, nil
}

// WriteCount returns the number of RecordApplied and RecordReverted calls.
func (m *MockLedger) WriteCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.RecordAppliedCalls) + len(m.RecordRevertedCalls)
}

// Reset clears the call history.
func (m *MockLedger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RecordAppliedCalls = nil
	m.RecordRevertedCalls = nil
	m.BeginIntentCalls = nil
	m.EndIntentCalls = nil
	m.ReadCalls = 0
}

var (
	_ Ledger  = (*MockLedger)(nil)
	_ Journal = (*MockLedger)(nil)
)
