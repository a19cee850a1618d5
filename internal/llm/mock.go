package llm

import (
	"context"
	"sync"
)

// Compile-time check that MockCompleter implements Completer.
var _ Completer = (*MockCompleter)(nil)

// MockCompleter is a scripted Completer for tests. It records every request
// and answers from Responses in order, repeating the last one once the
// script runs out.
type MockCompleter struct {
	// CompleteFunc, when set, replaces the scripted responses.
	CompleteFunc func(ctx context.Context, req Request) (string, error)

	// Responses are returned in call order.
	Responses []string

	// Err, when non-nil, is returned by every call.
	Err error

	mu    sync.Mutex
	calls []Request
}

// NewMockCompleter returns a MockCompleter that answers with responses.
func NewMockCompleter(responses ...string) *MockCompleter {
	return &MockCompleter{Responses: responses}
}

// Complete records req and returns the next scripted response.
func (m *MockCompleter) Complete(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	n := len(m.calls)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	if n > len(m.Responses) {
		n = len(m.Responses)
	}
	return m.Responses[n-1], nil
}

// Calls returns a copy of the recorded requests.
func (m *MockCompleter) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// WithError configures every call to fail with err and returns the receiver.
func (m *MockCompleter) WithError(err error) *MockCompleter {
	m.Err = err
	return m
}
