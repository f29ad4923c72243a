package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/verag/internal/core/domain"
)

// MockProjectStore is an in-memory ProjectStore.
type MockProjectStore struct {
	mu       sync.RWMutex
	projects map[string]*domain.Project
}

// NewMockProjectStore creates an empty project store
func NewMockProjectStore() *MockProjectStore {
	return &MockProjectStore{projects: make(map[string]*domain.Project)}
}

func (m *MockProjectStore) Get(ctx context.Context, id string) (*domain.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockProjectStore) Save(ctx context.Context, project *domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *project
	m.projects[project.ID] = &cp
	return nil
}

// MockDocumentStore is an in-memory DocumentStore.
type MockDocumentStore struct {
	mu   sync.RWMutex
	docs map[string]*domain.Document

	// SaveErr is returned by Save when set
	SaveErr error
	// ChunkCountErr is returned by SetChunkCount when set
	ChunkCountErr error
}

// NewMockDocumentStore creates an empty document store
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{docs: make(map[string]*domain.Document)}
}

func (m *MockDocumentStore) Save(ctx context.Context, doc *domain.Document) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *MockDocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MockDocumentStore) ListByProject(ctx context.Context, projectID string, limit, offset int) ([]*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.Document
	for _, d := range m.docs {
		if d.ProjectID == projectID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if offset >= len(out) {
		return []*domain.Document{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockDocumentStore) SetExtractedText(ctx context.Context, id, text, contentHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	t := text
	d.RawText = &t
	d.ContentHash = contentHash
	return nil
}

func (m *MockDocumentStore) SetChunkCount(ctx context.Context, id string, count int) error {
	if m.ChunkCountErr != nil {
		return m.ChunkCountErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.ChunkCount = count
	return nil
}

func (m *MockDocumentStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

// Name returns the stored name of a document, "" if unknown.
func (m *MockDocumentStore) Name(id string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.docs[id]; ok {
		return d.Name
	}
	return ""
}
