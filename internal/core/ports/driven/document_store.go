package driven

import (
	"context"

	"github.com/custodia-labs/verag/internal/core/domain"
)

// ProjectStore resolves projects (PostgreSQL). Project CRUD lives elsewhere.
type ProjectStore interface {
	// Get retrieves a project by ID, domain.ErrNotFound if missing
	Get(ctx context.Context, id string) (*domain.Project, error)

	// Save creates or updates a project
	Save(ctx context.Context, project *domain.Project) error
}

// DocumentStore handles document persistence (PostgreSQL)
type DocumentStore interface {
	// Save creates or updates a document
	Save(ctx context.Context, doc *domain.Document) error

	// Get retrieves a document by ID, domain.ErrNotFound if missing
	Get(ctx context.Context, id string) (*domain.Document, error)

	// ListByProject retrieves documents of a project with pagination
	ListByProject(ctx context.Context, projectID string, limit, offset int) ([]*domain.Document, error)

	// SetExtractedText records the extracted text once extraction completes
	SetExtractedText(ctx context.Context, id, text, contentHash string) error

	// SetChunkCount records how many chunks the last ingestion produced
	SetChunkCount(ctx context.Context, id string, count int) error

	// Delete removes a document and, by cascade, its chunks. Deleting a
	// missing document is not an error.
	Delete(ctx context.Context, id string) error
}
