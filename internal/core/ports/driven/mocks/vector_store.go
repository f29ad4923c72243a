package mocks

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/verag/internal/core/domain"
)

// MockVectorStore is an in-memory VectorStore with exact cosine search.
// A replace either swaps the whole chunk set of a document or leaves it untouched.
type MockVectorStore struct {
	mu         sync.RWMutex
	dimensions int
	chunks     map[string][]*domain.Chunk // documentID -> chunks by ordinal
	names      func(documentID string) string
	replaces   int

	// ReplaceErr fails every ReplaceChunks after validation when set
	ReplaceErr error
	// SearchErr fails every Search when set
	SearchErr error
}

// NewMockVectorStore creates a store for vectors of the given length.
// docs, when non-nil, supplies document names for search hits.
func NewMockVectorStore(dimensions int, docs *MockDocumentStore) *MockVectorStore {
	m := &MockVectorStore{
		dimensions: dimensions,
		chunks:     make(map[string][]*domain.Chunk),
		names:      func(string) string { return "" },
	}
	if docs != nil {
		m.names = docs.Name
	}
	return m
}

func (m *MockVectorStore) ReplaceChunks(ctx context.Context, documentID, projectID string, chunks []domain.ChunkInput) (int, error) {
	for i, c := range chunks {
		if len(c.Embedding) != m.dimensions {
			return 0, fmt.Errorf("%w: chunk %d has %d, want %d",
				domain.ErrDimensionMismatch, i, len(c.Embedding), m.dimensions)
		}
	}
	if m.ReplaceErr != nil {
		return 0, m.ReplaceErr
	}

	now := time.Now()
	next := make([]*domain.Chunk, len(chunks))
	for i, c := range chunks {
		emb := make([]float32, len(c.Embedding))
		copy(emb, c.Embedding)
		next[i] = &domain.Chunk{
			ID:         domain.GenerateID(),
			DocumentID: documentID,
			ProjectID:  projectID,
			Ordinal:    i,
			Content:    c.Content,
			Embedding:  emb,
			CreatedAt:  now,
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(next) == 0 {
		delete(m.chunks, documentID)
	} else {
		m.chunks[documentID] = next
	}
	m.replaces++
	return len(next), nil
}

func (m *MockVectorStore) Search(ctx context.Context, projectID string, query []float32, topK int) ([]*domain.ScoredChunk, error) {
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("%w: query has %d, want %d", domain.ErrDimensionMismatch, len(query), m.dimensions)
	}
	if topK <= 0 {
		return []*domain.ScoredChunk{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := []*domain.ScoredChunk{}
	for docID, chunks := range m.chunks {
		for _, c := range chunks {
			if c.ProjectID != projectID {
				continue
			}
			results = append(results, &domain.ScoredChunk{
				ChunkID:      c.ID,
				DocumentID:   docID,
				DocumentName: m.names(docID),
				Ordinal:      c.Ordinal,
				Content:      c.Content,
				Score:        cosine(query, c.Embedding),
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].DocumentID != results[j].DocumentID {
			return results[i].DocumentID < results[j].DocumentID
		}
		return results[i].Ordinal < results[j].Ordinal
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *MockVectorStore) GetByDocument(ctx context.Context, documentID string, withEmbeddings bool) ([]*domain.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.Chunk, 0, len(m.chunks[documentID]))
	for _, c := range m.chunks[documentID] {
		cp := *c
		if !withEmbeddings {
			cp.Embedding = nil
		}
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockVectorStore) Dimensions() int {
	return m.dimensions
}

func (m *MockVectorStore) Ping(ctx context.Context) error {
	return nil
}

// ChunkCount returns the number of chunks stored for a document.
func (m *MockVectorStore) ChunkCount(documentID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks[documentID])
}

// ReplaceCount returns how many ReplaceChunks calls succeeded.
func (m *MockVectorStore) ReplaceCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.replaces
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
