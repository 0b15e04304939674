package executor

import (
	"context"
	"sync"

	"github.com/getpup/schemamigrate"
)

// MockRunner is a mock implementation of Runner for testing.
type MockRunner struct {
	mu       sync.Mutex
	RunFunc  func(ctx context.Context, def schemamigrate.Definition, dir schemamigrate.Direction) (Outcome, error)
	RunCalls []RunCall
}

// RunCall records the parameters of a single Run call.
type RunCall struct {
	ID        schemamigrate.Identifier
	Direction schemamigrate.Direction
}

// NewMockRunner creates a new MockRunner with an empty call history.
func NewMockRunner() *MockRunner {
	return &MockRunner{
		RunCalls: make([]RunCall, 0),
	}
}

// Run implements the Runner interface.
// It records the call parameters, then:
// - If RunFunc is set, calls and returns it
// - Otherwise, returns an empty Outcome
func (m *MockRunner) Run(ctx context.Context, def schemamigrate.Definition, dir schemamigrate.Direction) (Outcome, error) {
	m.mu.Lock()
	m.RunCalls = append(m.RunCalls, RunCall{ID: def.ID, Direction: dir})
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, def, dir)
	}

	return Outcome{}, nil
}

// Reset clears the call history.
func (m *MockRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RunCalls = make([]RunCall, 0)
}
