package driven

import "github.com/custodia-labs/verag/internal/core/domain"

// AIServiceFactory turns provider settings into live clients.
// Both methods return nil, nil when the settings leave the provider unset
// or lack a required API key.
type AIServiceFactory interface {
	CreateEmbeddingService(settings *domain.EmbeddingSettings) (EmbeddingService, error)
	CreateLLMService(settings *domain.LLMSettings) (LLMService, error)
}
