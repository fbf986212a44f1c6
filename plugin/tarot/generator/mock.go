package generator

import (
	"context"
	"sync"
)

// MockLLM is an LLM stub for testing.
type MockLLM struct {
	mu sync.Mutex

	// Response is returned by Complete when Err is nil.
	Response string
	// Err, when set, is returned by every Complete call.
	Err error

	calls int
}

// Complete returns the configured response or error.
func (m *MockLLM) Complete(_ context.Context, _, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// Calls returns the number of Complete invocations.
func (m *MockLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var _ LLM = (*MockLLM)(nil)
