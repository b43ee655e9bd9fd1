package llm

import (
	"context"
	"sync"
)

// MockClient is a scripted LLMClient for tests.
// Responses and errors are consumed in order; the last entry repeats.
type MockClient struct {
	mu        sync.Mutex
	responses []CompletionResponse
	errs      []error
	calls     []CompletionRequest
}

// NewMockClient creates a mock that always returns the given content.
func NewMockClient(content string) *MockClient {
	return &MockClient{
		responses: []CompletionResponse{{Content: content, StopReason: "end_turn"}},
	}
}

// NewMockClientWithScript creates a mock that plays back responses and errors in order.
// A nil error at index i pairs with responses[i].
func NewMockClientWithScript(responses []CompletionResponse, errs []error) *MockClient {
	return &MockClient{responses: responses, errs: errs}
}

// Complete implements the LLMClient interface.
func (m *MockClient) Complete(_ context.Context, in CompletionRequest) (CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := len(m.calls)
	m.calls = append(m.calls, in)

	if idx < len(m.errs) && m.errs[idx] != nil {
		return CompletionResponse{}, m.errs[idx]
	}

	if len(m.responses) == 0 {
		return CompletionResponse{Content: "", StopReason: "end_turn"}, nil
	}
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

// GetModelName returns a fixed mock model name.
func (m *MockClient) GetModelName() string {
	return "mock-model"
}

// CallCount returns how many times Complete was invoked.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastRequest returns the most recent request, or nil if none were made.
func (m *MockClient) LastRequest() *CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	req := m.calls[len(m.calls)-1]
	return &req
}
