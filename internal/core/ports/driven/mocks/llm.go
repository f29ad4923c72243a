package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/verag/internal/core/ports/driven"
)

// MockLLMService is a mock implementation of LLMService for testing
type MockLLMService struct {
	mu       sync.Mutex
	requests []driven.GenerateRequest

	// GenerateFn overrides the default canned response when set
	GenerateFn func(req driven.GenerateRequest) (string, error)

	// Response is returned when GenerateFn is nil
	Response string
}

// NewMockLLMService creates a MockLLMService with a fixed response
func NewMockLLMService(response string) *MockLLMService {
	return &MockLLMService{Response: response}
}

func (m *MockLLMService) Generate(ctx context.Context, req driven.GenerateRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	fn := m.GenerateFn
	resp := m.Response
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if fn != nil {
		return fn(req)
	}
	return resp, nil
}

func (m *MockLLMService) Model() string {
	return "mock-llm"
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	return nil
}

func (m *MockLLMService) Close() error {
	return nil
}

// Requests returns every request received, in order.
func (m *MockLLMService) Requests() []driven.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]driven.GenerateRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
