package driving

import (
	"context"

	"github.com/custodia-labs/verag/internal/core/domain"
)

// AnswerService answers questions grounded in a project's documents.
type AnswerService interface {
	// Ask embeds the question, retrieves the project's closest chunks and
	// prompts the language model with them. Citations mirror the retrieved
	// chunks in order. Failures are *domain.PipelineError.
	Ask(ctx context.Context, req domain.AskRequest) (*domain.Answer, error)
}
