package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/verag/internal/core/domain"
	"github.com/custodia-labs/verag/internal/core/ports/driven"
	"github.com/custodia-labs/verag/internal/core/ports/driving"
)

const (
	defaultDequeueTimeout = 5
	dequeueErrorBackoff   = time.Second
)

// handler runs one task kind and reports how many chunks it stored.
type handler func(ctx context.Context, task *domain.Task) (int, error)

// Worker drains the ingest queue. Each claimed task goes through the same
// IngestService the synchronous API uses, so queued and inline ingestion
// produce identical chunks.
type Worker struct {
	queue    driven.TaskQueue
	ingest   driving.IngestService
	logger   *slog.Logger
	handlers map[domain.TaskType]handler

	concurrency    int
	dequeueTimeout int // seconds

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig wires a Worker.
type WorkerConfig struct {
	TaskQueue      driven.TaskQueue
	Ingest         driving.IngestService
	Logger         *slog.Logger
	Concurrency    int // parallel consumers, at least 1
	DequeueTimeout int // seconds a consumer blocks waiting for work
}

// NewWorker builds a Worker, filling zero config values with defaults.
func NewWorker(cfg WorkerConfig) *Worker {
	w := &Worker{
		queue:          cfg.TaskQueue,
		ingest:         cfg.Ingest,
		logger:         cfg.Logger,
		concurrency:    max(cfg.Concurrency, 1),
		dequeueTimeout: cfg.DequeueTimeout,
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.dequeueTimeout <= 0 {
		w.dequeueTimeout = defaultDequeueTimeout
	}
	w.handlers = map[domain.TaskType]handler{
		domain.TaskTypeIngestDocument: w.ingestDocument,
	}
	return w
}

// Start spawns the consumers and returns. They exit on Stop or when ctx ends.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	w.logger.Info("ingest worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	var wg sync.WaitGroup
	wg.Add(w.concurrency)
	for id := range w.concurrency {
		go func() {
			defer wg.Done()
			w.consume(ctx, id)
		}()
	}
	go func(done chan struct{}) {
		wg.Wait()
		close(done)
	}(w.doneCh)

	return nil
}

// Stop signals the consumers and blocks until the task each one holds is
// settled.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	done := w.doneCh
	w.mu.Unlock()

	<-done

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	w.logger.Info("ingest worker stopped")
}

// Wait blocks until every consumer has exited.
func (w *Worker) Wait() {
	w.mu.RLock()
	done := w.doneCh
	w.mu.RUnlock()
	if done != nil {
		<-done
	}
}

func (w *Worker) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-w.stopCh:
		return true
	default:
		return false
	}
}

func (w *Worker) consume(ctx context.Context, id int) {
	logger := w.logger.With("consumer", id)

	for !w.stopping(ctx) {
		task, err := w.queue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			continue
		case err != nil:
			logger.Error("dequeue failed", "error", err)
			select {
			case <-time.After(dequeueErrorBackoff):
			case <-ctx.Done():
			case <-w.stopCh:
			}
			continue
		case task == nil:
			continue
		}

		w.settle(ctx, task, logger)
	}
}

// settle runs the task and acks or nacks it. A nack requeues with backoff
// until the task's attempts are used up.
func (w *Worker) settle(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With(
		"task_id", task.ID,
		"task_type", task.Type,
		"project_id", task.ProjectID,
		"document_id", task.DocumentID(),
		"attempt", task.Attempts,
	)
	logger.Info("ingest task claimed")

	began := time.Now()
	chunks, err := w.run(ctx, task)
	elapsed := time.Since(began)

	if err != nil {
		logger.Error("ingest task failed", "duration", elapsed, "kind", domain.KindOf(err), "error", err)
		if nackErr := w.queue.Nack(ctx, task.ID, err.Error()); nackErr != nil {
			logger.Error("nack failed", "error", nackErr)
		}
		return
	}

	logger.Info("ingest task done", "duration", elapsed, "chunks", chunks)
	if ackErr := w.queue.Ack(ctx, task.ID, chunks); ackErr != nil {
		logger.Error("ack failed", "error", ackErr)
	}
}

func (w *Worker) run(ctx context.Context, task *domain.Task) (int, error) {
	h, ok := w.handlers[task.Type]
	if !ok {
		return 0, fmt.Errorf("unknown task type: %s", task.Type)
	}
	return h(ctx, task)
}

func (w *Worker) ingestDocument(ctx context.Context, task *domain.Task) (int, error) {
	docID := task.DocumentID()
	if docID == "" {
		return 0, errors.New("task payload has no document_id")
	}

	res, err := w.ingest.Ingest(ctx, domain.IngestRequest{
		DocumentID:   docID,
		ForceExtract: task.ForceExtract(),
		CallerID:     task.CallerID(),
	})
	if err != nil {
		return 0, err
	}
	return res.ChunkCount, nil
}

// Health is the worker's liveness snapshot.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health reports whether consumers are running and the queue answers a ping.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	h := Health{Running: w.running}
	w.mu.RUnlock()

	if err := w.queue.Ping(ctx); err != nil {
		h.Error = err.Error()
		return h
	}
	h.QueueHealth = true
	return h
}
