package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/swaggo/swag"

	"github.com/custodia-labs/verag/internal/core/domain"
	"github.com/custodia-labs/verag/internal/core/ports/driven"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxBodyBytes     = 8 << 20
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string           `json:"error"`
	Kind  domain.ErrorKind `json:"kind,omitempty"`
	Stage domain.Stage     `json:"stage,omitempty"`
}

// StatusResponse is the body of /health and /ready
type StatusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// ReadyResponse reports dependency health and pipeline capabilities
type ReadyResponse struct {
	Status       string            `json:"status"`
	Checks       map[string]string `json:"checks"`
	CanIngest    bool              `json:"can_ingest"`
	CanAnswer    bool              `json:"can_answer"`
	QueueBackend string            `json:"queue_backend,omitempty"`
	Dimensions   int               `json:"dimensions,omitempty"`

	Queue *driven.QueueStats `json:"queue,omitempty"`
}

// VersionResponse represents version information
type VersionResponse struct {
	Version string `json:"version"`
}

// AskBody is the JSON body of POST /api/v1/ask
type AskBody struct {
	ProjectID string `json:"project_id" validate:"required"`
	Question  string `json:"question" validate:"required"`
	TopK      int    `json:"top_k,omitempty" validate:"gte=0"`
	Phase     string `json:"phase,omitempty" validate:"max=64"`
}

// IngestTextBody is the JSON body of POST /api/v1/ingest
type IngestTextBody struct {
	ProjectID string `json:"project_id" validate:"required"`
	Name      string `json:"name" validate:"required,max=512"`
	Text      string `json:"text"`
}

// IngestDocumentBody is the optional JSON body of POST /api/v1/documents/{id}/ingest
type IngestDocumentBody struct {
	ForceExtract bool `json:"force_extract,omitempty"`
}

// handleHealth godoc
// @Summary      Liveness probe
// @Tags         system
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness probe
// @Description  Pings the database, Redis and the embedding provider
// @Tags         system
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Checks: map[string]string{}}
	status := http.StatusOK

	check := func(name string, err error, required bool) {
		if err == nil {
			resp.Checks[name] = "ok"
			return
		}
		resp.Checks[name] = err.Error()
		if required {
			resp.Status = "not ready"
			status = http.StatusServiceUnavailable
		}
	}

	if s.db != nil {
		check("database", s.db.Ping(ctx), true)
	}
	if s.redis != nil {
		check("redis", s.redis.Ping(ctx), true)
	}
	if s.taskQueue != nil {
		stats, err := s.taskQueue.Stats(ctx)
		check("queue", err, false)
		resp.Queue = stats
	}
	if s.services != nil {
		if emb := s.services.EmbeddingService(); emb != nil {
			check("embedding", emb.HealthCheck(ctx), false)
		} else {
			resp.Checks["embedding"] = "not configured"
		}
		if llm := s.services.LLMService(); llm == nil {
			resp.Checks["llm"] = "not configured"
		}
		cfg := s.services.Config()
		resp.CanIngest = cfg.CanIngest()
		resp.CanAnswer = cfg.CanAnswer()
		resp.QueueBackend = cfg.QueueBackend
		resp.Dimensions = cfg.Dimensions
	}

	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Build version
// @Tags         system
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

func (s *Server) handleSwagger(w http.ResponseWriter, _ *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusNotFound, "api documentation not registered")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// handleAsk godoc
// @Summary      Ask a question
// @Description  Answers a question from the project's documents with citations
// @Tags         answers
// @Accept       json
// @Produce      json
// @Param        body  body      AskBody  true  "Question"
// @Success      200   {object}  domain.Answer
// @Failure      400   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      502   {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /ask [post]
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var body AskBody
	if !s.decodeAndValidate(w, r, &body, false) {
		return
	}

	answer, err := s.answers.Ask(r.Context(), domain.AskRequest{
		ProjectID: body.ProjectID,
		Question:  body.Question,
		TopK:      body.TopK,
		Phase:     body.Phase,
		CallerID:  callerID(r),
	})
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

// handleIngestText godoc
// @Summary      Ingest raw text
// @Description  Creates a document from raw text and indexes it synchronously
// @Tags         ingest
// @Accept       json
// @Produce      json
// @Param        body  body      IngestTextBody  true  "Document text"
// @Success      201   {object}  domain.IngestResult
// @Failure      400   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      502   {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /ingest [post]
func (s *Server) handleIngestText(w http.ResponseWriter, r *http.Request) {
	var body IngestTextBody
	if !s.decodeAndValidate(w, r, &body, false) {
		return
	}

	result, err := s.ingest.Ingest(r.Context(), domain.IngestRequest{
		ProjectID: body.ProjectID,
		Name:      body.Name,
		Text:      body.Text,
		CallerID:  callerID(r),
	})
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// handleIngestDocument godoc
// @Summary      Ingest a stored document
// @Description  Extracts, chunks and embeds a stored document. With async=true the work is queued.
// @Tags         ingest
// @Accept       json
// @Produce      json
// @Param        id     path      string              true   "Document ID"
// @Param        async  query     bool                false  "Queue instead of running inline"
// @Param        body   body      IngestDocumentBody  false  "Options"
// @Success      200    {object}  domain.IngestResult
// @Success      202    {object}  domain.Task
// @Failure      404    {object}  ErrorResponse
// @Failure      409    {object}  ErrorResponse
// @Failure      422    {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /documents/{id}/ingest [post]
func (s *Server) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	var body IngestDocumentBody
	if !s.decodeAndValidate(w, r, &body, true) {
		return
	}

	req := domain.IngestRequest{
		DocumentID:   r.PathValue("id"),
		ForceExtract: body.ForceExtract,
		CallerID:     callerID(r),
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		task, err := s.ingest.Enqueue(r.Context(), req)
		if err != nil {
			s.writePipelineError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, task)
		return
	}

	result, err := s.ingest.Ingest(r.Context(), req)
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGetDocument godoc
// @Summary      Get a document
// @Tags         documents
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  domain.Document
// @Failure      404  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /documents/{id} [get]
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.Get(r.Context(), callerID(r), r.PathValue("id"))
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleGetDocumentChunks godoc
// @Summary      Get a document with its chunks
// @Tags         documents
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  domain.DocumentWithChunks
// @Failure      404  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /documents/{id}/chunks [get]
func (s *Server) handleGetDocumentChunks(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.GetWithChunks(r.Context(), callerID(r), r.PathValue("id"))
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleListProjectDocuments godoc
// @Summary      List a project's documents
// @Tags         documents
// @Produce      json
// @Param        id      path      string  true   "Project ID"
// @Param        limit   query     int     false  "Page size"
// @Param        offset  query     int     false  "Offset"
// @Success      200     {array}   domain.Document
// @Failure      400     {object}  ErrorResponse
// @Failure      404     {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /projects/{id}/documents [get]
func (s *Server) handleListProjectDocuments(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil || limit <= 0 || limit > maxListLimit {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must be non-negative")
		return
	}

	docs, err := s.documents.ListByProject(r.Context(), callerID(r), r.PathValue("id"), limit, offset)
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}
	if docs == nil {
		docs = []*domain.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// handleGetTask godoc
// @Summary      Get an ingestion task
// @Tags         ingest
// @Produce      json
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  domain.Task
// @Failure      404  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /tasks/{id} [get]
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.ingest.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}
	// Tasks of other callers are reported as missing.
	caller := callerID(r)
	if task == nil || (caller != "" && task.CallerID() != "" && task.CallerID() != caller) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// An empty body is accepted only when optional is set.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		writeKindError(w, http.StatusBadRequest, "invalid request body", domain.KindValidation, domain.StageValidate)
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		msg := "invalid request"
		if errors.As(err, &verrs) && len(verrs) > 0 {
			msg = validationMessage(verrs[0])
		}
		writeKindError(w, http.StatusBadRequest, msg, domain.KindValidation, domain.StageValidate)
		return false
	}
	return true
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gte":
		return fe.Field() + " must be at least " + fe.Param()
	case "max":
		return fe.Field() + " is too long"
	}
	return fe.Field() + " is invalid"
}

// writePipelineError maps the error taxonomy onto HTTP status codes.
func (s *Server) writePipelineError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := statusForKind(kind)

	msg := err.Error()
	if status >= 500 {
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"kind", kind,
			"stage", domain.StageOf(err),
			"request_id", RequestIDFromContext(r.Context()),
			"error", err,
		)
		if kind == domain.KindStore || kind == domain.KindUnknown {
			msg = "internal error"
		}
	}
	if kind == domain.KindNotFoundOrForbidden {
		msg = "not found"
	}

	writeKindError(w, status, msg, kind, domain.StageOf(err))
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFoundOrForbidden:
		return http.StatusNotFound
	case domain.KindExtraction:
		return http.StatusUnprocessableEntity
	case domain.KindEmbeddingProvider, domain.KindLanguageModel:
		return http.StatusBadGateway
	case domain.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeKindError(w http.ResponseWriter, status int, message string, kind domain.ErrorKind, stage domain.Stage) {
	writeJSON(w, status, ErrorResponse{Error: message, Kind: kind, Stage: stage})
}
