package services

import (
	"context"

	"github.com/custodia-labs/verag/internal/core/domain"
	"github.com/custodia-labs/verag/internal/core/ports/driven"
	"github.com/custodia-labs/verag/internal/core/ports/driving"
)

var _ driving.DocumentService = (*documentService)(nil)

// documentService serves read-only views of ingested documents. A document
// in a project the caller does not own reads exactly like a missing one.
type documentService struct {
	projects  driven.ProjectStore
	documents driven.DocumentStore
	vectors   driven.VectorStore
}

func NewDocumentService(
	projectStore driven.ProjectStore,
	documentStore driven.DocumentStore,
	vectorStore driven.VectorStore,
) driving.DocumentService {
	return &documentService{
		projects:  projectStore,
		documents: documentStore,
		vectors:   vectorStore,
	}
}

func (s *documentService) Get(ctx context.Context, callerID, id string) (*domain.Document, error) {
	doc, err := s.documents.Get(ctx, id)
	if err != nil {
		return nil, domain.NewPipelineError(lookupKind(err), domain.StageResolve, "", id, err)
	}
	if err := s.authorize(ctx, callerID, doc.ProjectID); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetWithChunks returns the document and its chunks by ordinal. Embeddings
// stay in the store.
func (s *documentService) GetWithChunks(ctx context.Context, callerID, id string) (*domain.DocumentWithChunks, error) {
	doc, err := s.Get(ctx, callerID, id)
	if err != nil {
		return nil, err
	}

	chunks, err := s.vectors.GetByDocument(ctx, id, false)
	if err != nil {
		return nil, domain.NewPipelineError(domain.KindStore, domain.StageRetrieve, doc.ProjectID, id, err)
	}
	return &domain.DocumentWithChunks{Document: doc, Chunks: chunks}, nil
}

func (s *documentService) ListByProject(ctx context.Context, callerID, projectID string, limit, offset int) ([]*domain.Document, error) {
	if err := s.authorize(ctx, callerID, projectID); err != nil {
		return nil, err
	}
	docs, err := s.documents.ListByProject(ctx, projectID, limit, offset)
	if err != nil {
		return nil, domain.NewPipelineError(domain.KindStore, domain.StageRetrieve, projectID, "", err)
	}
	return docs, nil
}

func (s *documentService) authorize(ctx context.Context, callerID, projectID string) error {
	project, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return domain.NewPipelineError(lookupKind(err), domain.StageResolve, projectID, "", err)
	}
	if !project.AccessibleBy(callerID) {
		return domain.NewPipelineError(domain.KindNotFoundOrForbidden, domain.StageResolve, projectID, "", nil)
	}
	return nil
}
