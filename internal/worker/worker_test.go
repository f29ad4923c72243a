package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/custodia-labs/verag/internal/core/domain"
	"github.com/custodia-labs/verag/internal/core/ports/driven/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubIngest records requests and answers from a per-document table.
type stubIngest struct {
	mu       sync.Mutex
	requests []domain.IngestRequest
	results  map[string]int
	errs     map[string]error
}

func (s *stubIngest) Ingest(ctx context.Context, req domain.IngestRequest) (*domain.IngestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if err := s.errs[req.DocumentID]; err != nil {
		return nil, err
	}
	return &domain.IngestResult{DocumentID: req.DocumentID, ChunkCount: s.results[req.DocumentID]}, nil
}

func (s *stubIngest) Enqueue(ctx context.Context, req domain.IngestRequest) (*domain.Task, error) {
	return nil, errors.New("not used")
}

func (s *stubIngest) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	return nil, errors.New("not used")
}

func (s *stubIngest) Requests() []domain.IngestRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.IngestRequest(nil), s.requests...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitForStatus(t *testing.T, q *mocks.MockTaskQueue, id string, status domain.TaskStatus) *domain.Task {
	t.Helper()
	var task *domain.Task
	require.Eventually(t, func() bool {
		var err error
		task, err = q.GetTask(context.Background(), id)
		return err == nil && task.Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return task
}

func TestWorker_ProcessesIngestTask(t *testing.T) {
	queue := mocks.NewMockTaskQueue()
	ingest := &stubIngest{results: map[string]int{"doc-1": 4}}
	w := NewWorker(WorkerConfig{TaskQueue: queue, Ingest: ingest, Logger: quietLogger(), Concurrency: 2})

	task := domain.NewIngestTask("proj-1", "doc-1", "user-1")
	task.Payload[domain.PayloadForceExtract] = "true"
	require.NoError(t, queue.Enqueue(context.Background(), task))

	require.NoError(t, w.Start(context.Background()))
	done := waitForStatus(t, queue, task.ID, domain.TaskStatusCompleted)
	w.Stop()

	assert.Equal(t, 4, done.ChunkCount)
	reqs := ingest.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.IngestRequest{DocumentID: "doc-1", ForceExtract: true, CallerID: "user-1"}, reqs[0])
}

func TestWorker_RetriesThenFails(t *testing.T) {
	queue := mocks.NewMockTaskQueue()
	ingest := &stubIngest{errs: map[string]error{"doc-1": errors.New("provider down")}}
	w := NewWorker(WorkerConfig{TaskQueue: queue, Ingest: ingest, Logger: quietLogger()})

	task := domain.NewIngestTask("proj-1", "doc-1", "")
	require.NoError(t, queue.Enqueue(context.Background(), task))

	require.NoError(t, w.Start(context.Background()))
	failed := waitForStatus(t, queue, task.ID, domain.TaskStatusFailed)
	w.Stop()

	assert.Equal(t, "provider down", failed.Error)
	assert.Len(t, ingest.Requests(), task.MaxAttempts)
}

func TestWorker_RejectsMalformedTasks(t *testing.T) {
	queue := mocks.NewMockTaskQueue()
	ingest := &stubIngest{}
	w := NewWorker(WorkerConfig{TaskQueue: queue, Ingest: ingest, Logger: quietLogger()})

	noDoc := domain.NewTask(domain.TaskTypeIngestDocument, "proj-1", map[string]string{})
	noDoc.MaxAttempts = 1
	unknown := domain.NewTask("rebuild_index", "proj-1", nil)
	unknown.MaxAttempts = 1
	require.NoError(t, queue.Enqueue(context.Background(), noDoc))
	require.NoError(t, queue.Enqueue(context.Background(), unknown))

	require.NoError(t, w.Start(context.Background()))
	a := waitForStatus(t, queue, noDoc.ID, domain.TaskStatusFailed)
	b := waitForStatus(t, queue, unknown.ID, domain.TaskStatusFailed)
	w.Stop()

	assert.Contains(t, a.Error, "document_id")
	assert.Contains(t, b.Error, "unknown task type")
	assert.Empty(t, ingest.Requests())
}

func TestWorker_StartStop(t *testing.T) {
	w := NewWorker(WorkerConfig{TaskQueue: mocks.NewMockTaskQueue(), Ingest: &stubIngest{}, Logger: quietLogger()})

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()), "second start is a no-op")
	assert.True(t, w.Health(context.Background()).Running)

	w.Stop()
	w.Stop()
	h := w.Health(context.Background())
	assert.False(t, h.Running)
	assert.True(t, h.QueueHealth)
}

func TestWorker_ContextCancelStopsLoops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(WorkerConfig{TaskQueue: mocks.NewMockTaskQueue(), Ingest: &stubIngest{}, Logger: quietLogger(), Concurrency: 3})

	require.NoError(t, w.Start(ctx))
	cancel()

	finished := make(chan struct{})
	go func() {
		w.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after context cancel")
	}
}

func TestNewWorker_Defaults(t *testing.T) {
	w := NewWorker(WorkerConfig{TaskQueue: mocks.NewMockTaskQueue()})
	assert.Equal(t, 1, w.concurrency)
	assert.Equal(t, 5, w.dequeueTimeout)
}
