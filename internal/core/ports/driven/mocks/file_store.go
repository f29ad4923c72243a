package mocks

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/custodia-labs/verag/internal/core/domain"
)

// MockFileStore serves file contents from memory.
type MockFileStore struct {
	mu    sync.RWMutex
	files map[string][]byte
	opens int
}

// NewMockFileStore creates an empty file store
func NewMockFileStore() *MockFileStore {
	return &MockFileStore{files: make(map[string][]byte)}
}

func (m *MockFileStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	m.opens++
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Put stores data at path.
func (m *MockFileStore) Put(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = data
}

// Opens returns how many times a file was opened.
func (m *MockFileStore) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}
