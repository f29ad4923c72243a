package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/verag/internal/core/domain"
	"github.com/custodia-labs/verag/internal/core/ports/driven"
	"github.com/custodia-labs/verag/internal/core/ports/driving"
	"github.com/custodia-labs/verag/internal/runtime"
)

// Ensure answerService implements AnswerService
var _ driving.AnswerService = (*answerService)(nil)

const (
	DefaultTopK      = 5
	DefaultMaxTopK   = 50
	DefaultMaxTokens = 400
)

// AnswerServiceConfig holds dependencies for the answer service.
type AnswerServiceConfig struct {
	ProjectStore driven.ProjectStore
	VectorStore  driven.VectorStore
	Services     *runtime.Services
	Embedder     EmbedderConfig

	DefaultTopK int
	MaxTopK     int

	// MaxTokens bounds the completion length
	MaxTokens int

	// Timeout bounds the completion call
	Timeout time.Duration

	Logger *slog.Logger
}

type answerService struct {
	projects    driven.ProjectStore
	vectors     driven.VectorStore
	services    *runtime.Services
	embedCfg    EmbedderConfig
	defaultTopK int
	maxTopK     int
	maxTokens   int
	timeout     time.Duration
	logger      *slog.Logger
}

// NewAnswerService creates a new AnswerService
func NewAnswerService(cfg AnswerServiceConfig) driving.AnswerService {
	s := &answerService{
		projects:    cfg.ProjectStore,
		vectors:     cfg.VectorStore,
		services:    cfg.Services,
		embedCfg:    cfg.Embedder,
		defaultTopK: cfg.DefaultTopK,
		maxTopK:     cfg.MaxTopK,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		logger:      cfg.Logger,
	}
	if s.defaultTopK <= 0 {
		s.defaultTopK = DefaultTopK
	}
	if s.maxTopK <= 0 {
		s.maxTopK = DefaultMaxTopK
	}
	if s.maxTokens <= 0 {
		s.maxTokens = DefaultMaxTokens
	}
	if s.timeout <= 0 {
		s.timeout = DefaultProviderTimeout
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Ask answers one question. Project resolution and the ownership check
// happen before any provider is called.
func (s *answerService) Ask(ctx context.Context, req domain.AskRequest) (*domain.Answer, error) {
	start := time.Now()
	progress := domain.NewAnswerProgress()

	fail := func(kind domain.ErrorKind, stage domain.Stage, err error) error {
		progress.Fail()
		return logFailure(s.logger, "answer failed",
			domain.NewPipelineError(kind, stage, req.ProjectID, "", err))
	}

	question := strings.TrimSpace(req.Question)
	if question == "" || strings.TrimSpace(req.ProjectID) == "" {
		return nil, fail(domain.KindValidation, domain.StageValidate,
			fmt.Errorf("%w: project_id and question are required", domain.ErrInvalidInput))
	}
	if req.TopK < 0 {
		return nil, fail(domain.KindValidation, domain.StageValidate,
			fmt.Errorf("%w: top_k must not be negative", domain.ErrInvalidInput))
	}
	topK := req.TopK
	if topK == 0 {
		topK = s.defaultTopK
	}
	if topK > s.maxTopK {
		topK = s.maxTopK
	}

	project, err := s.projects.Get(ctx, req.ProjectID)
	if err != nil {
		return nil, fail(lookupKind(err), domain.StageResolve, fmt.Errorf("project %s: %w", req.ProjectID, err))
	}
	if !project.AccessibleBy(req.CallerID) {
		return nil, fail(domain.KindNotFoundOrForbidden, domain.StageResolve,
			fmt.Errorf("project %s: %w", req.ProjectID, domain.ErrForbidden))
	}

	var embedSvc driven.EmbeddingService
	var llm driven.LLMService
	if s.services != nil {
		embedSvc = s.services.EmbeddingService()
		llm = s.services.LLMService()
	}
	if embedSvc == nil {
		return nil, fail(domain.KindEmbeddingProvider, domain.StageEmbed,
			fmt.Errorf("embedding provider not configured: %w", domain.ErrServiceUnavailable))
	}
	if llm == nil {
		return nil, fail(domain.KindLanguageModel, domain.StageGenerate,
			fmt.Errorf("language model not configured: %w", domain.ErrServiceUnavailable))
	}

	if err := advance(progress, domain.AnswerStateEmbeddingQuery, domain.StageEmbed, project.ID); err != nil {
		return nil, logFailure(s.logger, "answer failed", err.(*domain.PipelineError))
	}
	vec, err := NewEmbedder(embedSvc, s.embedCfg).EmbedQuery(ctx, queryText(question, req.Phase))
	if err != nil {
		return nil, fail(domain.KindEmbeddingProvider, domain.StageEmbed, err)
	}

	if err := advance(progress, domain.AnswerStateRetrieving, domain.StageRetrieve, project.ID); err != nil {
		return nil, logFailure(s.logger, "answer failed", err.(*domain.PipelineError))
	}
	chunks, err := s.vectors.Search(ctx, project.ID, vec, topK)
	if err != nil {
		return nil, fail(domain.KindStore, domain.StageRetrieve, err)
	}

	if err := advance(progress, domain.AnswerStatePrompting, domain.StagePrompt, project.ID); err != nil {
		return nil, logFailure(s.logger, "answer failed", err.(*domain.PipelineError))
	}
	system, prompt := BuildPrompt(question, req.Phase, chunks)

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	text, err := llm.Generate(genCtx, driven.GenerateRequest{
		System:      system,
		Prompt:      prompt,
		MaxTokens:   s.maxTokens,
		Temperature: 0.2,
	})
	cancel()
	if err != nil {
		return nil, fail(domain.KindLanguageModel, domain.StageGenerate, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fail(domain.KindLanguageModel, domain.StageGenerate, domain.ErrEmptyCompletion)
	}

	if err := advance(progress, domain.AnswerStateCompleted, domain.StageGenerate, project.ID); err != nil {
		return nil, logFailure(s.logger, "answer failed", err.(*domain.PipelineError))
	}
	took := time.Since(start)

	s.logger.Info("answer completed",
		"project_id", project.ID,
		"sources", len(chunks),
		"top_k", topK,
		"duration_ms", took.Milliseconds(),
	)

	return &domain.Answer{
		ProjectID: project.ID,
		Answer:    text,
		Citations: domain.CitationsFrom(chunks),
		State:     progress.State(),
		Model:     llm.Model(),
		Took:      took,
	}, nil
}

// advance moves progress to next. An illegal transition fails the answer
// with KindUnknown.
func advance(progress *domain.AnswerProgress, next domain.AnswerState, stage domain.Stage, projectID string) error {
	if err := progress.Advance(next); err != nil {
		progress.Fail()
		return domain.NewPipelineError(domain.KindUnknown, stage, projectID, "", err)
	}
	return nil
}
