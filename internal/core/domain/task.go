package domain

import (
	"time"

	"github.com/google/uuid"
)

// GenerateID returns a random UUID string.
func GenerateID() string {
	return uuid.NewString()
}

// TaskType names the handler a queued task is routed to.
type TaskType string

// TaskTypeIngestDocument runs the ingest pipeline for one stored document.
const TaskTypeIngestDocument TaskType = "ingest_document"

// Payload keys of an ingest_document task.
const (
	PayloadDocumentID   = "document_id"
	PayloadCallerID     = "caller_id"
	PayloadForceExtract = "force_extract"
)

const defaultMaxAttempts = 3

type TaskStatus string

// A task moves pending -> processing -> completed, or back to pending on a
// retryable failure, and to failed once attempts run out.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task is an asynchronous ingestion request as stored by the queue and
// returned by GET /tasks/{id}.
type Task struct {
	ID        string            `json:"id"`
	Type      TaskType          `json:"type"`
	ProjectID string            `json:"project_id"`
	Payload   map[string]string `json:"payload"`

	Status      TaskStatus `json:"status"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	Error       string     `json:"error,omitempty"`       // last failure
	ChunkCount  int        `json:"chunk_count,omitempty"` // set on completion

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewTask returns a pending task allowed three attempts.
func NewTask(taskType TaskType, projectID string, payload map[string]string) *Task {
	now := time.Now()
	return &Task{
		ID:          GenerateID(),
		Type:        taskType,
		ProjectID:   projectID,
		Payload:     payload,
		Status:      TaskStatusPending,
		MaxAttempts: defaultMaxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewIngestTask queues ingestion of documentID. callerID is kept so the
// worker applies the same ownership check the API would have.
func NewIngestTask(projectID, documentID, callerID string) *Task {
	payload := map[string]string{PayloadDocumentID: documentID}
	if callerID != "" {
		payload[PayloadCallerID] = callerID
	}
	return NewTask(TaskTypeIngestDocument, projectID, payload)
}

func (t *Task) DocumentID() string { return t.Payload[PayloadDocumentID] }
func (t *Task) CallerID() string   { return t.Payload[PayloadCallerID] }

// ForceExtract reports whether stored text must be re-extracted.
func (t *Task) ForceExtract() bool { return t.Payload[PayloadForceExtract] == "true" }

func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}

// IsTerminal is true for completed and failed tasks.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// MarkProcessing claims the task and counts the attempt.
func (t *Task) MarkProcessing() {
	now := t.touch(TaskStatusProcessing)
	t.StartedAt = &now
	t.Attempts++
}

func (t *Task) MarkCompleted(chunkCount int) {
	now := t.touch(TaskStatusCompleted)
	t.CompletedAt = &now
	t.ChunkCount = chunkCount
	t.Error = ""
}

func (t *Task) MarkFailed(reason string) {
	now := t.touch(TaskStatusFailed)
	t.CompletedAt = &now
	t.Error = reason
}

// Retry puts the task back in line, keeping reason as its last error.
func (t *Task) Retry(reason string) {
	t.touch(TaskStatusPending)
	t.Error = reason
}

func (t *Task) touch(status TaskStatus) time.Time {
	now := time.Now()
	t.Status = status
	t.UpdatedAt = now
	return now
}
