package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/custodia-labs/verag/internal/core/domain"
	"github.com/custodia-labs/verag/internal/core/ports/driven"
	"github.com/custodia-labs/verag/internal/core/ports/driving"
	"github.com/custodia-labs/verag/internal/runtime"
)

// Ensure ingestService implements IngestService
var _ driving.IngestService = (*ingestService)(nil)

// DefaultIngestLockTTL bounds how long one ingestion may hold its document lock.
const DefaultIngestLockTTL = 10 * time.Minute

// IngestLockName is the distributed lock serializing ingestions of one document.
func IngestLockName(documentID string) string {
	return "ingest:" + documentID
}

// IngestServiceConfig holds dependencies for the ingestion service.
type IngestServiceConfig struct {
	ProjectStore  driven.ProjectStore
	DocumentStore driven.DocumentStore
	VectorStore   driven.VectorStore
	FileStore     driven.FileStore
	Extractors    driven.ExtractorRegistry
	Pipeline      driven.PostProcessorPipeline
	Services      *runtime.Services

	// Lock serializes ingestion per document; nil disables locking
	Lock    driven.DistributedLock
	LockTTL time.Duration

	// TaskQueue backs Enqueue; nil disables background ingestion
	TaskQueue driven.TaskQueue

	Embedder EmbedderConfig
	Logger   *slog.Logger
}

// ingestService runs extract -> chunk -> embed -> replace for one document.
type ingestService struct {
	projects  driven.ProjectStore
	documents driven.DocumentStore
	vectors   driven.VectorStore
	files     driven.FileStore
	extract   driven.ExtractorRegistry
	pipeline  driven.PostProcessorPipeline
	services  *runtime.Services
	lock      driven.DistributedLock
	lockTTL   time.Duration
	queue     driven.TaskQueue
	embedCfg  EmbedderConfig
	logger    *slog.Logger
}

// NewIngestService creates a new IngestService
func NewIngestService(cfg IngestServiceConfig) driving.IngestService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = DefaultIngestLockTTL
	}

	return &ingestService{
		projects:  cfg.ProjectStore,
		documents: cfg.DocumentStore,
		vectors:   cfg.VectorStore,
		files:     cfg.FileStore,
		extract:   cfg.Extractors,
		pipeline:  cfg.Pipeline,
		services:  cfg.Services,
		lock:      cfg.Lock,
		lockTTL:   ttl,
		queue:     cfg.TaskQueue,
		embedCfg:  cfg.Embedder,
		logger:    logger,
	}
}

// ingestRun carries the state of one ingestion through its stages.
type ingestRun struct {
	req     domain.IngestRequest
	project *domain.Project
	doc     *domain.Document
	isNew   bool
}

func (r *ingestRun) fail(kind domain.ErrorKind, stage domain.Stage, err error) *domain.PipelineError {
	projectID, documentID := r.req.ProjectID, r.req.DocumentID
	if r.doc != nil {
		projectID, documentID = r.doc.ProjectID, r.doc.ID
	}
	return domain.NewPipelineError(kind, stage, projectID, documentID, err)
}

// Ingest runs the pipeline synchronously.
func (s *ingestService) Ingest(ctx context.Context, req domain.IngestRequest) (*domain.IngestResult, error) {
	start := time.Now()
	run := &ingestRun{req: req}

	if err := req.Validate(); err != nil {
		return nil, logFailure(s.logger, "ingestion rejected",
			run.fail(domain.KindValidation, domain.StageValidate,
				fmt.Errorf("%w: document_id or project_id and name are required", err)))
	}

	if perr := s.resolve(ctx, run); perr != nil {
		return nil, logFailure(s.logger, "ingestion rejected", perr)
	}

	embedSvc := s.embeddingService()
	if embedSvc == nil {
		return nil, logFailure(s.logger, "ingestion failed",
			run.fail(domain.KindEmbeddingProvider, domain.StageEmbed,
				fmt.Errorf("embedding provider not configured: %w", domain.ErrServiceUnavailable)))
	}

	if s.lock != nil {
		name := IngestLockName(run.doc.ID)
		acquired, err := s.lock.Acquire(ctx, name, s.lockTTL)
		if err != nil {
			return nil, logFailure(s.logger, "ingestion failed",
				run.fail(domain.KindStore, domain.StageLock, fmt.Errorf("acquire %s: %w", name, err)))
		}
		if !acquired {
			return nil, logFailure(s.logger, "ingestion rejected",
				run.fail(domain.KindConflict, domain.StageLock, domain.ErrIngestInProgress))
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), name); err != nil {
				s.logger.Warn("failed to release ingest lock", "lock", name, "error", err)
			}
		}()
	}

	text, perr := s.text(ctx, run)
	if perr != nil {
		return nil, logFailure(s.logger, "ingestion failed", perr)
	}

	pieces := s.pipeline.Process(text)
	contents := make([]string, len(pieces))
	for i, p := range pieces {
		contents[i] = p.Content
	}

	embedder := NewEmbedder(embedSvc, s.embedCfg)
	vectors, err := embedder.Embed(ctx, contents)
	if err != nil {
		return nil, logFailure(s.logger, "ingestion failed",
			run.fail(domain.KindEmbeddingProvider, domain.StageEmbed, err))
	}

	if run.isNew {
		if err := s.documents.Save(ctx, run.doc); err != nil {
			return nil, logFailure(s.logger, "ingestion failed",
				run.fail(domain.KindStore, domain.StageStore, fmt.Errorf("save document: %w", err)))
		}
	}

	inputs := make([]domain.ChunkInput, len(contents))
	for i := range contents {
		inputs[i] = domain.ChunkInput{Content: contents[i], Embedding: vectors[i]}
	}
	count, err := s.vectors.ReplaceChunks(ctx, run.doc.ID, run.doc.ProjectID, inputs)
	if err != nil {
		s.discardNew(ctx, run)
		return nil, logFailure(s.logger, "ingestion failed",
			run.fail(domain.KindStore, domain.StageStore, err))
	}
	if err := s.documents.SetChunkCount(ctx, run.doc.ID, count); err != nil {
		s.discardNew(ctx, run)
		return nil, logFailure(s.logger, "ingestion failed",
			run.fail(domain.KindStore, domain.StageStore, fmt.Errorf("record chunk count: %w", err)))
	}

	took := time.Since(start)
	s.logger.Info("ingestion completed",
		"project_id", run.doc.ProjectID,
		"document_id", run.doc.ID,
		"chunks", count,
		"batch_size", embedder.BatchSize(),
		"duration_ms", took.Milliseconds(),
	)

	return &domain.IngestResult{
		DocumentID:  run.doc.ID,
		ProjectID:   run.doc.ProjectID,
		Name:        run.doc.Name,
		ChunkCount:  count,
		ContentHash: run.doc.ContentHash,
		Took:        took,
	}, nil
}

// discardNew removes a document row created by this run so a failed raw-text
// ingestion leaves nothing behind. Its chunks cascade with the row. Stored
// documents are left as they were.
func (s *ingestService) discardNew(ctx context.Context, run *ingestRun) {
	if !run.isNew {
		return
	}
	if err := s.documents.Delete(context.WithoutCancel(ctx), run.doc.ID); err != nil {
		s.logger.Warn("failed to remove document of failed ingestion",
			"project_id", run.doc.ProjectID,
			"document_id", run.doc.ID,
			"error", err,
		)
	}
}

// resolve loads (or, for raw text, prepares) the document and checks that the
// caller may write to its project. Nothing is spent before this succeeds.
func (s *ingestService) resolve(ctx context.Context, run *ingestRun) *domain.PipelineError {
	req := run.req
	projectID := req.ProjectID

	if req.ByDocument() {
		doc, err := s.documents.Get(ctx, req.DocumentID)
		if err != nil {
			return run.fail(lookupKind(err), domain.StageResolve, fmt.Errorf("document %s: %w", req.DocumentID, err))
		}
		run.doc = doc
		projectID = doc.ProjectID
	}

	project, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return run.fail(lookupKind(err), domain.StageResolve, fmt.Errorf("project %s: %w", projectID, err))
	}
	if !project.AccessibleBy(req.CallerID) {
		return run.fail(domain.KindNotFoundOrForbidden, domain.StageResolve,
			fmt.Errorf("project %s: %w", projectID, domain.ErrForbidden))
	}
	run.project = project

	if run.doc == nil {
		run.isNew = true
		run.doc = &domain.Document{
			ID:        domain.GenerateID(),
			ProjectID: project.ID,
			Name:      req.Name,
			MimeType:  "text/plain",
			SizeBytes: int64(len(req.Text)),
			CreatedAt: time.Now(),
		}
	}
	return nil
}

// text returns the document text, extracting it from the stored file when
// there is no usable extracted text yet.
func (s *ingestService) text(ctx context.Context, run *ingestRun) (string, *domain.PipelineError) {
	doc := run.doc

	if run.isNew {
		text := run.req.Text
		now := time.Now()
		doc.RawText = &text
		doc.ContentHash = contentHash(text)
		doc.ExtractedAt = &now
		return text, nil
	}

	if doc.HasText() && !run.req.ForceExtract {
		return *doc.RawText, nil
	}
	if doc.FilePath == "" {
		if doc.HasText() {
			return *doc.RawText, nil
		}
		return "", run.fail(domain.KindExtraction, domain.StageExtract,
			fmt.Errorf("%w: document has no stored file", domain.ErrUnsupportedFormat))
	}

	text, err := s.extractFile(ctx, doc)
	if err != nil {
		return "", run.fail(domain.KindExtraction, domain.StageExtract, err)
	}

	hash := contentHash(text)
	if err := s.documents.SetExtractedText(ctx, doc.ID, text, hash); err != nil {
		return "", run.fail(domain.KindStore, domain.StageExtract, fmt.Errorf("save extracted text: %w", err))
	}
	now := time.Now()
	doc.RawText = &text
	doc.ContentHash = hash
	doc.ExtractedAt = &now
	return text, nil
}

func (s *ingestService) extractFile(ctx context.Context, doc *domain.Document) (string, error) {
	file := driven.SourceFile{Name: doc.Name, MimeType: doc.MimeType, Size: doc.SizeBytes}

	extractor := s.extract.Get(file)
	if extractor == nil {
		return "", fmt.Errorf("%w: %q (%s)", domain.ErrUnsupportedFormat, doc.MimeType, doc.Name)
	}
	if s.files == nil {
		return "", errors.New("no file store configured")
	}

	rc, err := s.files.Open(ctx, doc.FilePath)
	if err != nil {
		return "", fmt.Errorf("open stored file: %w", err)
	}
	defer rc.Close()

	text, err := extractor.Extract(ctx, rc, file)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", doc.Name, err)
	}
	return text, nil
}

// Enqueue schedules ingestion of a stored document in the background.
func (s *ingestService) Enqueue(ctx context.Context, req domain.IngestRequest) (*domain.Task, error) {
	run := &ingestRun{req: req}

	if !req.ByDocument() {
		return nil, logFailure(s.logger, "ingestion rejected",
			run.fail(domain.KindValidation, domain.StageValidate,
				fmt.Errorf("%w: background ingestion requires document_id", domain.ErrInvalidInput)))
	}
	if s.queue == nil {
		return nil, logFailure(s.logger, "ingestion rejected",
			run.fail(domain.KindStore, domain.StageValidate,
				fmt.Errorf("task queue not configured: %w", domain.ErrServiceUnavailable)))
	}
	if perr := s.resolve(ctx, run); perr != nil {
		return nil, logFailure(s.logger, "ingestion rejected", perr)
	}

	task := domain.NewIngestTask(run.doc.ProjectID, run.doc.ID, req.CallerID)
	if req.ForceExtract {
		task.Payload[domain.PayloadForceExtract] = "true"
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return nil, logFailure(s.logger, "ingestion enqueue failed",
			run.fail(domain.KindStore, domain.StageValidate, fmt.Errorf("enqueue: %w", err)))
	}

	s.logger.Info("ingestion enqueued",
		"project_id", task.ProjectID,
		"document_id", run.doc.ID,
		"task_id", task.ID,
	)
	return task, nil
}

// GetTask returns a background ingestion task.
func (s *ingestService) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	if s.queue == nil {
		return nil, fmt.Errorf("task queue not configured: %w", domain.ErrServiceUnavailable)
	}
	return s.queue.GetTask(ctx, taskID)
}

func (s *ingestService) embeddingService() driven.EmbeddingService {
	if s.services == nil {
		return nil
	}
	return s.services.EmbeddingService()
}

// contentHash fingerprints extracted text.
func contentHash(text string) string {
	sum := blake2b.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
