package llm

import (
	"context"
	"sync"

	"docqa/internal/port"
)

// MockLLM returns a fixed reply and records the requests it receives.
type MockLLM struct {
	Reply string
	Err   error

	mu       sync.Mutex
	requests []port.GenerateRequest
}

var _ port.LLM = (*MockLLM)(nil)

func NewMockLLM(reply string) *MockLLM {
	return &MockLLM{Reply: reply}
}

func (m *MockLLM) Generate(ctx context.Context, req port.GenerateRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	return m.Reply, nil
}

func (m *MockLLM) Requests() []port.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]port.GenerateRequest(nil), m.requests...)
}

func (m *MockLLM) ModelName() string {
	return "mock"
}
