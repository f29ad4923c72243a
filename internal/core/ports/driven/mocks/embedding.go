package mocks

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
)

// MockEmbeddingService is a mock implementation of EmbeddingService for testing.
// Embeddings are deterministic per text unless overridden with SetVector.
type MockEmbeddingService struct {
	mu           sync.Mutex
	dimensions   int
	model        string
	maxBatchSize int
	failOnCall   int // 1-based Embed call that fails, 0 = never
	failErr      error
	calls        [][]string
	vectors      map[string][]float32
	wrongDims    bool
}

// NewMockEmbeddingService creates a new MockEmbeddingService
func NewMockEmbeddingService() *MockEmbeddingService {
	return &MockEmbeddingService{
		dimensions: 8,
		model:      "mock-embedding-model",
		vectors:    make(map[string][]float32),
	}
}

func (m *MockEmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := make([]string, len(texts))
	copy(batch, texts)
	m.calls = append(m.calls, batch)

	if m.failOnCall > 0 && len(m.calls) == m.failOnCall {
		return nil, m.failErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.maxBatchSize > 0 && len(texts) > m.maxBatchSize {
		return nil, fmt.Errorf("batch of %d exceeds provider limit %d", len(texts), m.maxBatchSize)
	}

	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = m.vectorFor(text)
	}
	return result, nil
}

func (m *MockEmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := m.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *MockEmbeddingService) Dimensions() int {
	return m.dimensions
}

func (m *MockEmbeddingService) Model() string {
	return m.model
}

func (m *MockEmbeddingService) MaxBatchSize() int {
	return m.maxBatchSize
}

func (m *MockEmbeddingService) HealthCheck(ctx context.Context) error {
	return nil
}

func (m *MockEmbeddingService) Close() error {
	return nil
}

func (m *MockEmbeddingService) vectorFor(text string) []float32 {
	if v, ok := m.vectors[text]; ok {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}
	dims := m.dimensions
	if m.wrongDims {
		dims++
	}
	return HashVector(text, dims)
}

// HashVector returns a deterministic unit vector derived from text.
func HashVector(text string, dims int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	embedding := make([]float32, dims)
	var norm float64
	for i := range embedding {
		seed = seed*1103515245 + 12345
		embedding[i] = float32(seed%1000)/1000.0 - 0.5
		norm += float64(embedding[i]) * float64(embedding[i])
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range embedding {
			embedding[i] = float32(float64(embedding[i]) / norm)
		}
	}
	return embedding
}

// Helper methods for testing

// SetFailOnCall makes the n-th Embed call (1-based, counted from now on) fail with err.
func (m *MockEmbeddingService) SetFailOnCall(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOnCall = len(m.calls) + n
	m.failErr = err
}

// SetDimensions changes the vector length produced and reported.
func (m *MockEmbeddingService) SetDimensions(dim int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dimensions = dim
}

// SetMaxBatchSize sets the provider limit; larger batches are rejected.
func (m *MockEmbeddingService) SetMaxBatchSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxBatchSize = n
}

// SetWrongDimensions makes returned vectors one element longer than Dimensions().
func (m *MockEmbeddingService) SetWrongDimensions(wrong bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wrongDims = wrong
}

// SetVector pins the embedding returned for text.
func (m *MockEmbeddingService) SetVector(text string, vec []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[text] = vec
}

// Calls returns the texts of every Embed call, in order.
func (m *MockEmbeddingService) Calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Embed calls made.
func (m *MockEmbeddingService) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
