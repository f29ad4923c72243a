package ai

import (
	"fmt"

	"github.com/custodia-labs/verag/internal/core/domain"
	"github.com/custodia-labs/verag/internal/core/ports/driven"
)

var _ driven.AIServiceFactory = (*Factory)(nil)

// Factory builds model clients from settings. Unconfigured settings yield
// (nil, nil) so the process can start without a provider.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	var (
		svc driven.EmbeddingService
		err error
	)
	switch settings.Provider {
	case domain.AIProviderOpenAI:
		svc, err = NewOpenAIEmbedding(settings)
	case domain.AIProviderOllama:
		svc, err = NewOllamaEmbedding(settings)
	default:
		return nil, unsupported("embedding", settings.Provider)
	}
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (f *Factory) CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	var (
		svc driven.LLMService
		err error
	)
	switch settings.Provider {
	case domain.AIProviderOpenAI:
		svc, err = NewOpenAILLM(settings)
	case domain.AIProviderOllama:
		svc, err = NewOllamaLLM(settings)
	default:
		return nil, unsupported("llm", settings.Provider)
	}
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func unsupported(role string, p domain.AIProvider) error {
	return fmt.Errorf("%w: no %s adapter for %q", domain.ErrInvalidProvider, role, p)
}
