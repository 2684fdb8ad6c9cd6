package gateway

import (
	"context"
	"sync"

	"osgpt/pkg/gateway/gwerrors"
)

// MockStep is one scripted response from a MockClient.
type MockStep struct {
	Decision Decision
	Err      error
}

// MockClient is a scripted Client for tests: it returns its steps in order
// and records every request it receives.
type MockClient struct {
	mu       sync.Mutex
	steps    []MockStep
	Requests []Request
}

// NewMockClient builds a client that plays back the given steps.
func NewMockClient(steps ...MockStep) *MockClient {
	return &MockClient{steps: steps}
}

// TextStep scripts a plain text reply.
func TextStep(text string) MockStep {
	return MockStep{Decision: Decision{Text: text}}
}

// CallStep scripts a function call.
func CallStep(name string, args map[string]any) MockStep {
	return MockStep{Decision: Decision{Call: &FunctionCall{ID: "call_" + name, Name: name, Arguments: args}}}
}

// ErrStep scripts an error.
func ErrStep(err error) MockStep {
	return MockStep{Err: err}
}

// Decide implements Client.
func (m *MockClient) Decide(_ context.Context, req Request) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if len(m.steps) == 0 {
		return Decision{}, gwerrors.New(gwerrors.ErrorTypeEmptyResponse, "mock client script exhausted")
	}
	step := m.steps[0]
	m.steps = m.steps[1:]
	return step.Decision, step.Err
}

// ModelName implements Client.
func (m *MockClient) ModelName() string { return "mock" }

// Calls returns how many requests were made.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
