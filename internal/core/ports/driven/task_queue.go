package driven

import (
	"context"

	"github.com/custodia-labs/verag/internal/core/domain"
)

// TaskQueue carries background ingestion tasks from the API to workers.
// The Redis stream queue is used when REDIS_URL is set, the ingest_tasks
// table otherwise.
type TaskQueue interface {
	Enqueue(ctx context.Context, task *domain.Task) error

	// DequeueWithTimeout claims the next due task for this worker, waiting up
	// to timeout seconds (0 blocks until ctx ends). The claimed task is
	// processing and counts one more attempt. nil, nil on timeout.
	DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error)

	// Ack completes a claimed task with the number of chunks it stored.
	Ack(ctx context.Context, taskID string, chunkCount int) error

	// Nack schedules a retry with backoff while attempts remain and fails
	// the task otherwise.
	Nack(ctx context.Context, taskID string, reason string) error

	// GetTask returns nil, nil for an unknown or expired task.
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)

	Stats(ctx context.Context) (*QueueStats, error)
	Ping(ctx context.Context) error
	Close() error
}

// QueueStats counts tasks by status.
type QueueStats struct {
	PendingCount    int64 `json:"pending_count"`
	ProcessingCount int64 `json:"processing_count"`
	CompletedCount  int64 `json:"completed_count"`
	FailedCount     int64 `json:"failed_count"`
}
