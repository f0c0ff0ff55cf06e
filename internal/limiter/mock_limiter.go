package limiter

import "sync"

// MockLimiter is a test double for the Limiter interface
type MockLimiter struct {
	mu sync.Mutex

	// AllowResult is returned by every Allow call
	AllowResult bool

	// Track method calls for verification in tests
	AllowCalls  []string
	CloseCalled bool
}

// NewMockLimiter creates a mock that always answers allowResult
func NewMockLimiter(allowResult bool) *MockLimiter {
	return &MockLimiter{AllowResult: allowResult}
}

// Allow implements the Limiter interface
func (m *MockLimiter) Allow(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AllowCalls = append(m.AllowCalls, key)
	return m.AllowResult
}

// Calls returns a copy of the recorded keys
func (m *MockLimiter) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.AllowCalls...)
}

// Close implements the Limiter interface
func (m *MockLimiter) Close() error {
	m.CloseCalled = true
	return nil
}
