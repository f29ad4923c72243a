package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/custodia-labs/verag/internal/core/domain"
	"github.com/custodia-labs/verag/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/verag/internal/core/ports/driving"
	"github.com/custodia-labs/verag/internal/extractors"
	"github.com/custodia-labs/verag/internal/postprocessors"
	"github.com/custodia-labs/verag/internal/runtime"
)

const testDims = 8

// fixture wires the services to in-memory adapters.
type fixture struct {
	projects *mocks.MockProjectStore
	docs     *mocks.MockDocumentStore
	vectors  *mocks.MockVectorStore
	files    *mocks.MockFileStore
	embed    *mocks.MockEmbeddingService
	llm      *mocks.MockLLMService
	lock     *mocks.MockDistributedLock
	queue    *mocks.MockTaskQueue
	services *runtime.Services

	ingest    driving.IngestService
	answer    driving.AnswerService
	documents driving.DocumentService
}

func newFixture(maxLength int, batchSize int) *fixture {
	f := &fixture{
		projects: mocks.NewMockProjectStore(),
		docs:     mocks.NewMockDocumentStore(),
		files:    mocks.NewMockFileStore(),
		embed:    mocks.NewMockEmbeddingService(),
		llm:      mocks.NewMockLLMService("grounded answer [1]"),
		lock:     mocks.NewMockDistributedLock(),
		queue:    mocks.NewMockTaskQueue(),
	}
	f.vectors = mocks.NewMockVectorStore(testDims, f.docs)
	f.embed.SetDimensions(testDims)

	f.services = runtime.NewServices(domain.NewRuntimeConfig("postgres", testDims))
	f.services.SetEmbeddingService(f.embed)
	f.services.SetLLMService(f.llm)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	embedCfg := EmbedderConfig{BatchSize: batchSize, Dimensions: testDims, Timeout: time.Second}

	f.ingest = NewIngestService(IngestServiceConfig{
		ProjectStore:  f.projects,
		DocumentStore: f.docs,
		VectorStore:   f.vectors,
		FileStore:     f.files,
		Extractors:    extractors.DefaultRegistry(),
		Pipeline:      postprocessors.DefaultPipeline(postprocessors.ChunkConfig{MaxLength: maxLength}),
		Services:      f.services,
		Lock:          f.lock,
		TaskQueue:     f.queue,
		Embedder:      embedCfg,
		Logger:        logger,
	})
	f.answer = NewAnswerService(AnswerServiceConfig{
		ProjectStore: f.projects,
		VectorStore:  f.vectors,
		Services:     f.services,
		Embedder:     embedCfg,
		Logger:       logger,
	})
	f.documents = NewDocumentService(f.projects, f.docs, f.vectors)
	return f
}

func (f *fixture) addProject(t *testing.T, id, owner string) {
	t.Helper()
	if err := f.projects.Save(context.Background(), &domain.Project{ID: id, Name: id, OwnerID: owner}); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) addDocument(t *testing.T, doc *domain.Document) {
	t.Helper()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	if err := f.docs.Save(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
}

func textPtr(s string) *string {
	return &s
}
