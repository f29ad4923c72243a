package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/verag/internal/core/domain"
	"github.com/custodia-labs/verag/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/verag/internal/runtime"
)

// Mock services

type mockAnswerService struct {
	askFn func(ctx context.Context, req domain.AskRequest) (*domain.Answer, error)
}

func (m *mockAnswerService) Ask(ctx context.Context, req domain.AskRequest) (*domain.Answer, error) {
	return m.askFn(ctx, req)
}

type mockIngestService struct {
	ingestFn  func(ctx context.Context, req domain.IngestRequest) (*domain.IngestResult, error)
	enqueueFn func(ctx context.Context, req domain.IngestRequest) (*domain.Task, error)
	getTaskFn func(ctx context.Context, taskID string) (*domain.Task, error)
}

func (m *mockIngestService) Ingest(ctx context.Context, req domain.IngestRequest) (*domain.IngestResult, error) {
	return m.ingestFn(ctx, req)
}

func (m *mockIngestService) Enqueue(ctx context.Context, req domain.IngestRequest) (*domain.Task, error) {
	return m.enqueueFn(ctx, req)
}

func (m *mockIngestService) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	return m.getTaskFn(ctx, taskID)
}

type mockDocumentService struct {
	getFn           func(ctx context.Context, callerID, id string) (*domain.Document, error)
	getWithChunksFn func(ctx context.Context, callerID, id string) (*domain.DocumentWithChunks, error)
	listFn          func(ctx context.Context, callerID, projectID string, limit, offset int) ([]*domain.Document, error)
}

func (m *mockDocumentService) Get(ctx context.Context, callerID, id string) (*domain.Document, error) {
	return m.getFn(ctx, callerID, id)
}

func (m *mockDocumentService) GetWithChunks(ctx context.Context, callerID, id string) (*domain.DocumentWithChunks, error) {
	return m.getWithChunksFn(ctx, callerID, id)
}

func (m *mockDocumentService) ListByProject(ctx context.Context, callerID, projectID string, limit, offset int) ([]*domain.Document, error) {
	return m.listFn(ctx, callerID, projectID, limit, offset)
}

type mockVerifier struct {
	tokens map[string]string
}

func (m *mockVerifier) Verify(token string) (*domain.Caller, error) {
	if uid, ok := m.tokens[token]; ok {
		return &domain.Caller{UserID: uid}, nil
	}
	return nil, domain.ErrTokenInvalid
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(context.Context) error { return m.err }

func newTestServer(deps Deps) *Server {
	if deps.Answers == nil {
		deps.Answers = &mockAnswerService{}
	}
	if deps.Ingest == nil {
		deps.Ingest = &mockIngestService{}
	}
	if deps.Documents == nil {
		deps.Documents = &mockDocumentService{}
	}
	return NewServer(Config{Version: "test"}, deps)
}

func do(t *testing.T, s *Server, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(Deps{})
	rr := do(t, s, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
}

func TestHandleVersion(t *testing.T) {
	s := newTestServer(Deps{})
	rr := do(t, s, http.MethodGet, "/version", "")

	var resp VersionResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "test", resp.Version)
}

func TestHandleSwagger(t *testing.T) {
	s := newTestServer(Deps{})
	rr := do(t, s, http.MethodGet, "/swagger/doc.json", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"/ask"`)
	assert.Contains(t, rr.Body.String(), "/api/v1")
}

func TestHandleReady(t *testing.T) {
	t.Run("all dependencies healthy", func(t *testing.T) {
		services := runtime.NewServices(domain.NewRuntimeConfig("redis", 8))
		emb := mocks.NewMockEmbeddingService()
		emb.SetDimensions(8)
		services.SetEmbeddingService(emb)
		services.SetLLMService(mocks.NewMockLLMService("ok"))

		queue := mocks.NewMockTaskQueue()
		require.NoError(t, queue.Enqueue(context.Background(), domain.NewIngestTask("p1", "d1", "")))

		s := newTestServer(Deps{Services: services, TaskQueue: queue, DB: &mockPinger{}, Redis: &mockPinger{}})
		rr := do(t, s, http.MethodGet, "/ready", "")

		require.Equal(t, http.StatusOK, rr.Code)
		var resp ReadyResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, "ready", resp.Status)
		assert.True(t, resp.CanIngest)
		assert.True(t, resp.CanAnswer)
		assert.Equal(t, "redis", resp.QueueBackend)
		assert.Equal(t, 8, resp.Dimensions)
		assert.Equal(t, "ok", resp.Checks["database"])
		require.NotNil(t, resp.Queue)
		assert.Equal(t, int64(1), resp.Queue.PendingCount)
	})

	t.Run("database down", func(t *testing.T) {
		s := newTestServer(Deps{DB: &mockPinger{err: errors.New("connection refused")}})
		rr := do(t, s, http.MethodGet, "/ready", "")

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Contains(t, rr.Body.String(), "connection refused")
	})

	t.Run("missing llm only limits capabilities", func(t *testing.T) {
		services := runtime.NewServices(domain.NewRuntimeConfig("postgres", 8))
		emb := mocks.NewMockEmbeddingService()
		emb.SetDimensions(8)
		services.SetEmbeddingService(emb)

		s := newTestServer(Deps{Services: services, DB: &mockPinger{}})
		rr := do(t, s, http.MethodGet, "/ready", "")

		require.Equal(t, http.StatusOK, rr.Code)
		var resp ReadyResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.True(t, resp.CanIngest)
		assert.False(t, resp.CanAnswer)
		assert.Equal(t, "not configured", resp.Checks["llm"])
	})
}

func TestHandleAsk(t *testing.T) {
	var got domain.AskRequest
	answers := &mockAnswerService{askFn: func(_ context.Context, req domain.AskRequest) (*domain.Answer, error) {
		got = req
		return &domain.Answer{
			ProjectID: req.ProjectID,
			Answer:    "Pump P-101 is rated at 40 m3/h [1].",
			Citations: []domain.Citation{{Source: 1, DocumentID: "d1", DocumentName: "pumps.pdf"}},
			State:     domain.AnswerStateCompleted,
		}, nil
	}}
	s := newTestServer(Deps{Answers: answers})

	rr := do(t, s, http.MethodPost, "/api/v1/ask",
		`{"project_id":"p1","question":"What is the pump rating?","top_k":3,"phase":"design"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.AskRequest{ProjectID: "p1", Question: "What is the pump rating?", TopK: 3, Phase: "design"}, got)

	var answer domain.Answer
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&answer))
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, "pumps.pdf", answer.Citations[0].DocumentName)
}

func TestHandleAsk_Validation(t *testing.T) {
	called := false
	answers := &mockAnswerService{askFn: func(context.Context, domain.AskRequest) (*domain.Answer, error) {
		called = true
		return nil, nil
	}}
	s := newTestServer(Deps{Answers: answers})

	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"missing question", `{"project_id":"p1"}`, "Question is required"},
		{"missing project", `{"question":"why?"}`, "ProjectID is required"},
		{"negative top_k", `{"project_id":"p1","question":"why?","top_k":-1}`, "TopK must be at least 0"},
		{"malformed json", `{"project_id":`, "invalid request body"},
		{"unknown field", `{"project_id":"p1","question":"q","extra":1}`, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, s, http.MethodPost, "/api/v1/ask", tt.body)
			require.Equal(t, http.StatusBadRequest, rr.Code)
			resp := decodeError(t, rr)
			assert.Equal(t, tt.msg, resp.Error)
			assert.Equal(t, domain.KindValidation, resp.Kind)
		})
	}
	assert.False(t, called)
}

func TestWritePipelineError_StatusMapping(t *testing.T) {
	tests := []struct {
		kind   domain.ErrorKind
		stage  domain.Stage
		status int
	}{
		{domain.KindValidation, domain.StageValidate, http.StatusBadRequest},
		{domain.KindNotFoundOrForbidden, domain.StageResolve, http.StatusNotFound},
		{domain.KindExtraction, domain.StageExtract, http.StatusUnprocessableEntity},
		{domain.KindEmbeddingProvider, domain.StageEmbed, http.StatusBadGateway},
		{domain.KindLanguageModel, domain.StageGenerate, http.StatusBadGateway},
		{domain.KindConflict, domain.StageLock, http.StatusConflict},
		{domain.KindStore, domain.StageStore, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			answers := &mockAnswerService{askFn: func(context.Context, domain.AskRequest) (*domain.Answer, error) {
				return nil, domain.NewPipelineError(tt.kind, tt.stage, "p1", "", nil)
			}}
			s := newTestServer(Deps{Answers: answers})

			rr := do(t, s, http.MethodPost, "/api/v1/ask", `{"project_id":"p1","question":"q"}`)

			assert.Equal(t, tt.status, rr.Code)
			resp := decodeError(t, rr)
			assert.Equal(t, tt.kind, resp.Kind)
			assert.Equal(t, tt.stage, resp.Stage)
		})
	}
}

func TestWritePipelineError_HidesInternals(t *testing.T) {
	answers := &mockAnswerService{askFn: func(context.Context, domain.AskRequest) (*domain.Answer, error) {
		return nil, domain.NewPipelineError(domain.KindStore, domain.StageRetrieve, "p1", "",
			errors.New("pq: password authentication failed for user verag"))
	}}
	s := newTestServer(Deps{Answers: answers})

	rr := do(t, s, http.MethodPost, "/api/v1/ask", `{"project_id":"p1","question":"q"}`)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "password")
	assert.Equal(t, "internal error", decodeError(t, rr).Error)
}

func TestHandleIngestText(t *testing.T) {
	var got domain.IngestRequest
	ingest := &mockIngestService{ingestFn: func(_ context.Context, req domain.IngestRequest) (*domain.IngestResult, error) {
		got = req
		return &domain.IngestResult{DocumentID: "d-new", ProjectID: req.ProjectID, Name: req.Name, ChunkCount: 2}, nil
	}}
	s := newTestServer(Deps{Ingest: ingest})

	rr := do(t, s, http.MethodPost, "/api/v1/ingest", `{"project_id":"p1","name":"notes.txt","text":"hello world"}`)

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "p1", got.ProjectID)
	assert.Equal(t, "notes.txt", got.Name)
	assert.Equal(t, "hello world", got.Text)
	assert.False(t, got.ByDocument())

	var result domain.IngestResult
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&result))
	assert.Equal(t, 2, result.ChunkCount)
}

func TestHandleIngestText_MissingName(t *testing.T) {
	s := newTestServer(Deps{})
	rr := do(t, s, http.MethodPost, "/api/v1/ingest", `{"project_id":"p1","text":"hello"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Name is required", decodeError(t, rr).Error)
}

func TestHandleIngestDocument(t *testing.T) {
	t.Run("sync without body", func(t *testing.T) {
		var got domain.IngestRequest
		ingest := &mockIngestService{ingestFn: func(_ context.Context, req domain.IngestRequest) (*domain.IngestResult, error) {
			got = req
			return &domain.IngestResult{DocumentID: req.DocumentID, ChunkCount: 4}, nil
		}}
		s := newTestServer(Deps{Ingest: ingest})

		rr := do(t, s, http.MethodPost, "/api/v1/documents/d1/ingest", "")

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "d1", got.DocumentID)
		assert.False(t, got.ForceExtract)
	})

	t.Run("sync with force_extract", func(t *testing.T) {
		var got domain.IngestRequest
		ingest := &mockIngestService{ingestFn: func(_ context.Context, req domain.IngestRequest) (*domain.IngestResult, error) {
			got = req
			return &domain.IngestResult{DocumentID: req.DocumentID}, nil
		}}
		s := newTestServer(Deps{Ingest: ingest})

		rr := do(t, s, http.MethodPost, "/api/v1/documents/d1/ingest", `{"force_extract":true}`)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, got.ForceExtract)
	})

	t.Run("async enqueues", func(t *testing.T) {
		ingest := &mockIngestService{enqueueFn: func(_ context.Context, req domain.IngestRequest) (*domain.Task, error) {
			return domain.NewIngestTask("p1", req.DocumentID, ""), nil
		}}
		s := newTestServer(Deps{Ingest: ingest})

		rr := do(t, s, http.MethodPost, "/api/v1/documents/d1/ingest?async=true", "")

		require.Equal(t, http.StatusAccepted, rr.Code)
		var task domain.Task
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&task))
		assert.Equal(t, "d1", task.DocumentID())
		assert.Equal(t, domain.TaskStatusPending, task.Status)
	})

	t.Run("concurrent ingestion conflicts", func(t *testing.T) {
		ingest := &mockIngestService{ingestFn: func(_ context.Context, req domain.IngestRequest) (*domain.IngestResult, error) {
			return nil, domain.NewPipelineError(domain.KindConflict, domain.StageLock, "p1", req.DocumentID, nil)
		}}
		s := newTestServer(Deps{Ingest: ingest})

		rr := do(t, s, http.MethodPost, "/api/v1/documents/d1/ingest", "")
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("unsupported format", func(t *testing.T) {
		ingest := &mockIngestService{ingestFn: func(_ context.Context, req domain.IngestRequest) (*domain.IngestResult, error) {
			return nil, domain.NewPipelineError(domain.KindExtraction, domain.StageExtract, "p1", req.DocumentID,
				fmt.Errorf("%w: image/png", domain.ErrUnsupportedFormat))
		}}
		s := newTestServer(Deps{Ingest: ingest})

		rr := do(t, s, http.MethodPost, "/api/v1/documents/d1/ingest", "")
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, decodeError(t, rr).Error, "image/png")
	})
}

func TestHandleGetDocument(t *testing.T) {
	docs := &mockDocumentService{getFn: func(_ context.Context, _, id string) (*domain.Document, error) {
		if id != "d1" {
			return nil, domain.ErrNotFound
		}
		return &domain.Document{ID: "d1", ProjectID: "p1", Name: "brief.pdf", ChunkCount: 3}, nil
	}}
	s := newTestServer(Deps{Documents: docs})

	rr := do(t, s, http.MethodGet, "/api/v1/documents/d1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"name":"brief.pdf"`)

	rr = do(t, s, http.MethodGet, "/api/v1/documents/missing", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	resp := decodeError(t, rr)
	assert.Equal(t, "not found", resp.Error)
	assert.Equal(t, domain.KindNotFoundOrForbidden, resp.Kind)
}

func TestHandleGetDocumentChunks(t *testing.T) {
	docs := &mockDocumentService{getWithChunksFn: func(_ context.Context, _, id string) (*domain.DocumentWithChunks, error) {
		return &domain.DocumentWithChunks{
			Document: &domain.Document{ID: id},
			Chunks: []*domain.Chunk{
				{ID: "c0", DocumentID: id, Ordinal: 0, Content: "first"},
				{ID: "c1", DocumentID: id, Ordinal: 1, Content: "second"},
			},
		}, nil
	}}
	s := newTestServer(Deps{Documents: docs})

	rr := do(t, s, http.MethodGet, "/api/v1/documents/d1/chunks", "")

	require.Equal(t, http.StatusOK, rr.Code)
	var resp domain.DocumentWithChunks
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp.Chunks, 2)
	assert.Equal(t, "second", resp.Chunks[1].Content)
}

func TestHandleListProjectDocuments(t *testing.T) {
	var gotLimit, gotOffset int
	docs := &mockDocumentService{listFn: func(_ context.Context, _, projectID string, limit, offset int) ([]*domain.Document, error) {
		gotLimit, gotOffset = limit, offset
		return nil, nil
	}}
	s := newTestServer(Deps{Documents: docs})

	rr := do(t, s, http.MethodGet, "/api/v1/projects/p1/documents", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, defaultListLimit, gotLimit)
	assert.Equal(t, 0, gotOffset)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = do(t, s, http.MethodGet, "/api/v1/projects/p1/documents?limit=10&offset=20", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 10, gotLimit)
	assert.Equal(t, 20, gotOffset)

	for _, q := range []string{"limit=0", "limit=abc", "limit=501", "offset=-1"} {
		rr = do(t, s, http.MethodGet, "/api/v1/projects/p1/documents?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
}

func TestHandleGetTask(t *testing.T) {
	task := domain.NewIngestTask("p1", "d1", "alice")
	ingest := &mockIngestService{getTaskFn: func(_ context.Context, id string) (*domain.Task, error) {
		if id == task.ID {
			return task, nil
		}
		return nil, nil
	}}
	verifier := &mockVerifier{tokens: map[string]string{"alice-token": "alice", "bob-token": "bob"}}
	s := newTestServer(Deps{Ingest: ingest, Verifier: verifier})

	rr := do(t, s, http.MethodGet, "/api/v1/tasks/"+task.ID, "", "Authorization", "Bearer alice-token")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, s, http.MethodGet, "/api/v1/tasks/"+task.ID, "", "Authorization", "Bearer bob-token")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, s, http.MethodGet, "/api/v1/tasks/unknown", "", "Authorization", "Bearer alice-token")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAuthenticatedCallerReachesServices(t *testing.T) {
	var got string
	docs := &mockDocumentService{getFn: func(_ context.Context, callerID, id string) (*domain.Document, error) {
		got = callerID
		return &domain.Document{ID: id}, nil
	}}
	verifier := &mockVerifier{tokens: map[string]string{"good": "user-7"}}
	s := newTestServer(Deps{Documents: docs, Verifier: verifier})

	rr := do(t, s, http.MethodGet, "/api/v1/documents/d1", "", "Authorization", "Bearer good")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "user-7", got)

	rr = do(t, s, http.MethodGet, "/api/v1/documents/d1", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, s, http.MethodGet, "/api/v1/documents/d1", "", "Authorization", "Bearer forged")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// system routes stay open
	rr = do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}
