package services

import (
	"errors"
	"log/slog"

	"github.com/custodia-labs/verag/internal/core/domain"
)

// logFailure logs a pipeline failure once, at the service boundary, and returns it.
func logFailure(logger *slog.Logger, msg string, err *domain.PipelineError) error {
	logger.Error(msg,
		"project_id", err.ProjectID,
		"document_id", err.DocumentID,
		"stage", err.Stage,
		"kind", err.Kind,
		"error", err.Err,
	)
	return err
}

// lookupKind classifies a store lookup failure: missing rows are
// not-found-or-forbidden, anything else is a store failure.
func lookupKind(err error) domain.ErrorKind {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.KindNotFoundOrForbidden
	}
	return domain.KindStore
}
