package testutil

import (
	"context"
	"sync"

	"github.com/quantumlife/nostrboard/internal/core"
)

// MockSource implements a record source for testing. Without QueryFunc it
// answers from Events using core.Filter.Matches.
type MockSource struct {
	QueryFunc func(ctx context.Context, filters []core.Filter) ([]core.Event, error)
	Events    []core.Event

	mu    sync.Mutex
	calls [][]core.Filter
}

// Query records the call and answers it.
func (m *MockSource) Query(ctx context.Context, filters []core.Filter) ([]core.Event, error) {
	m.mu.Lock()
	m.calls = append(m.calls, filters)
	m.mu.Unlock()

	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, filters)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]core.Event, 0)
	for _, e := range m.Events {
		for _, f := range filters {
			if f.Matches(e) {
				out = append(out, e)
				break
			}
		}
	}
	return out, nil
}

// Calls returns the filters of every query so far.
func (m *MockSource) Calls() [][]core.Filter {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]core.Filter, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of queries so far.
func (m *MockSource) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset clears recorded calls.
func (m *MockSource) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
