package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller does not own the resource
	ErrForbidden = errors.New("forbidden")

	// ErrTokenInvalid indicates the bearer token is malformed, expired or badly signed
	ErrTokenInvalid = errors.New("token invalid")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates the AI service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrDimensionMismatch indicates a vector length differs from the configured dimension
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrUnsupportedFormat indicates no extractor handles the document's MIME type
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrEmptyCompletion indicates the language model returned no text
	ErrEmptyCompletion = errors.New("empty completion")

	// ErrIngestInProgress indicates another ingestion of the same document holds the lock
	ErrIngestInProgress = errors.New("ingestion already in progress")
)

// ErrorKind classifies pipeline failures at the request boundary.
type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"
	KindNotFoundOrForbidden ErrorKind = "not_found_or_forbidden"
	KindExtraction          ErrorKind = "extraction"
	KindEmbeddingProvider   ErrorKind = "embedding_provider"
	KindStore               ErrorKind = "store"
	KindLanguageModel       ErrorKind = "language_model"
	KindConflict            ErrorKind = "conflict"
	KindUnknown             ErrorKind = "unknown"
)

// Stage names the pipeline step an error was raised in.
type Stage string

const (
	StageValidate Stage = "validate"
	StageResolve  Stage = "resolve"
	StageLock     Stage = "lock"
	StageExtract  Stage = "extract"
	StageChunk    Stage = "chunk"
	StageEmbed    Stage = "embed"
	StageStore    Stage = "store"
	StageRetrieve Stage = "retrieve"
	StagePrompt   Stage = "prompt"
	StageGenerate Stage = "generate"
)

// PipelineError is a typed failure carrying enough context to diagnose it
// without exposing vectors or provider credentials.
type PipelineError struct {
	Kind       ErrorKind
	Stage      Stage
	ProjectID  string
	DocumentID string
	Err        error
}

func (e *PipelineError) Error() string {
	msg := fmt.Sprintf("%s failed at %s", e.Kind, e.Stage)
	if e.DocumentID != "" {
		msg += " (document " + e.DocumentID + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError builds a PipelineError. A nil err is replaced by the
// sentinel matching the kind so errors.Is keeps working.
func NewPipelineError(kind ErrorKind, stage Stage, projectID, documentID string, err error) *PipelineError {
	if err == nil {
		err = sentinelFor(kind)
	}
	return &PipelineError{
		Kind:       kind,
		Stage:      stage,
		ProjectID:  projectID,
		DocumentID: documentID,
		Err:        err,
	}
}

// KindOf reports the taxonomy kind of err, or KindUnknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		return KindValidation
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden):
		return KindNotFoundOrForbidden
	case errors.Is(err, ErrUnsupportedFormat):
		return KindExtraction
	case errors.Is(err, ErrIngestInProgress):
		return KindConflict
	}
	return KindUnknown
}

// StageOf reports the stage recorded on err, if any.
func StageOf(err error) Stage {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return ""
}

func sentinelFor(kind ErrorKind) error {
	switch kind {
	case KindValidation:
		return ErrInvalidInput
	case KindNotFoundOrForbidden:
		return ErrNotFound
	case KindExtraction:
		return ErrUnsupportedFormat
	case KindConflict:
		return ErrIngestInProgress
	case KindLanguageModel:
		return ErrEmptyCompletion
	default:
		return ErrServiceUnavailable
	}
}
