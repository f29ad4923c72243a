package driving

import (
	"context"

	"github.com/custodia-labs/verag/internal/core/domain"
)

// DocumentService provides read-only access to documents and their chunks.
// callerID is the authenticated user; empty skips the ownership check.
type DocumentService interface {
	// Get retrieves a document by ID
	Get(ctx context.Context, callerID, id string) (*domain.Document, error)

	// GetWithChunks retrieves a document with its chunks ordered by ordinal
	GetWithChunks(ctx context.Context, callerID, id string) (*domain.DocumentWithChunks, error)

	// ListByProject retrieves the documents of a project
	ListByProject(ctx context.Context, callerID, projectID string, limit, offset int) ([]*domain.Document, error)
}
