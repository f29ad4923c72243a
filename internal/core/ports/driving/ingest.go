package driving

import (
	"context"

	"github.com/custodia-labs/verag/internal/core/domain"
)

// IngestService turns documents into stored, embedded chunks.
type IngestService interface {
	// Ingest runs extraction, chunking, embedding and the chunk replace
	// synchronously. Failures are *domain.PipelineError.
	Ingest(ctx context.Context, req domain.IngestRequest) (*domain.IngestResult, error)

	// Enqueue schedules ingestion of a stored document on the task queue
	// after validating the request and the caller's access.
	Enqueue(ctx context.Context, req domain.IngestRequest) (*domain.Task, error)

	// GetTask returns a queued ingestion task
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)
}
