package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/verag/internal/core/domain"
	"github.com/custodia-labs/verag/internal/core/ports/driven"
)

// Ensure Queue implements TaskQueue
var _ driven.TaskQueue = (*Queue)(nil)

// pollInterval is how often an empty queue is re-checked while waiting.
const pollInterval = 500 * time.Millisecond

// Queue implements TaskQueue on the ingest_tasks table, claiming rows with
// FOR UPDATE SKIP LOCKED. Used when Redis is not configured.
type Queue struct {
	db *sql.DB
}

// NewQueue creates a PostgreSQL-backed task queue.
// The ingest_tasks table comes from the schema migration.
func NewQueue(db *sql.DB) *Queue {
	return &Queue{db: db}
}

const taskColumns = `id, type, project_id, payload, status, attempts, max_attempts,
	error, chunk_count, created_at, updated_at, started_at, completed_at`

// Enqueue inserts a pending task
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	payload, err := json.Marshal(task.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO ingest_tasks (id, type, project_id, payload, status, attempts, max_attempts, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		task.ID,
		task.Type,
		task.ProjectID,
		payload,
		task.Status,
		task.Attempts,
		task.MaxAttempts,
		sql.NullString{String: task.Error, Valid: task.Error != ""},
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// DequeueWithTimeout claims the oldest pending task, polling until timeout
// seconds have passed. Returns nil, nil when nothing arrives in time.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	deadline := time.Now().Add(time.Duration(timeout) * time.Second)
	for {
		task, err := q.claim(ctx)
		if err != nil || task != nil {
			return task, err
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(pollInterval):
		}
	}
}

func (q *Queue) claim(ctx context.Context) (*domain.Task, error) {
	row := q.db.QueryRowContext(ctx, `
		UPDATE ingest_tasks SET
			status = $1,
			attempts = attempts + 1,
			started_at = NOW(),
			updated_at = NOW()
		WHERE id = (
			SELECT id FROM ingest_tasks
			WHERE status = $2 AND updated_at <= NOW()
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+taskColumns,
		domain.TaskStatusProcessing, domain.TaskStatusPending)

	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}
	return task, nil
}

// Ack marks the task completed
func (q *Queue) Ack(ctx context.Context, taskID string, chunkCount int) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE ingest_tasks SET status = $2, chunk_count = $3, error = NULL,
			completed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, taskID, domain.TaskStatusCompleted, chunkCount)
	if err != nil {
		return fmt.Errorf("ack task: %w", err)
	}
	return expectTask(res, taskID)
}

// Nack returns the task to pending after a linear backoff, or fails it once
// attempts are exhausted. The backoff is stored as a future updated_at.
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE ingest_tasks SET
			status = CASE WHEN attempts < max_attempts THEN $2 ELSE $3 END,
			completed_at = CASE WHEN attempts < max_attempts THEN NULL ELSE NOW() END,
			updated_at = NOW() + (attempts * INTERVAL '5 seconds') * (CASE WHEN attempts < max_attempts THEN 1 ELSE 0 END),
			error = $4
		WHERE id = $1
	`, taskID, domain.TaskStatusPending, domain.TaskStatusFailed, reason)
	if err != nil {
		return fmt.Errorf("nack task: %w", err)
	}
	return expectTask(res, taskID)
}

// GetTask retrieves a task by ID, nil if unknown
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM ingest_tasks WHERE id = $1`, taskID)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// Stats counts tasks per status
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM ingest_tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	stats := &driven.QueueStats{}
	for rows.Next() {
		var status domain.TaskStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		switch status {
		case domain.TaskStatusPending:
			stats.PendingCount = count
		case domain.TaskStatusProcessing:
			stats.ProcessingCount = count
		case domain.TaskStatusCompleted:
			stats.CompletedCount = count
		case domain.TaskStatusFailed:
			stats.FailedCount = count
		}
	}
	return stats, rows.Err()
}

// Ping checks if the queue backend is healthy.
func (q *Queue) Ping(ctx context.Context) error {
	return q.db.PingContext(ctx)
}

// Close is a no-op; the pool is shared.
func (q *Queue) Close() error {
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*domain.Task, error) {
	var task domain.Task
	var payload []byte
	var taskErr sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&task.ID,
		&task.Type,
		&task.ProjectID,
		&payload,
		&task.Status,
		&task.Attempts,
		&task.MaxAttempts,
		&taskErr,
		&task.ChunkCount,
		&task.CreatedAt,
		&task.UpdatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &task.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	task.Error = taskErr.String
	if startedAt.Valid {
		task.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	return &task, nil
}

func expectTask(res sql.Result, taskID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
	return nil
}
