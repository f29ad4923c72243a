// Package runtime holds the AI clients shared by ingestion and answering.
package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/verag/internal/core/domain"
	"github.com/custodia-labs/verag/internal/core/ports/driven"
)

// Services is the live embedding and LLM pair. Either may be nil, which the
// capability flags on the RuntimeConfig mirror. Safe for concurrent use; a
// swapped-out client is closed.
type Services struct {
	config *domain.RuntimeConfig

	mu        sync.RWMutex
	embedding driven.EmbeddingService
	llm       driven.LLMService
}

// NewServices starts with no clients.
func NewServices(config *domain.RuntimeConfig) *Services {
	return &Services{config: config}
}

func (s *Services) Config() *domain.RuntimeConfig {
	return s.config
}

// EmbeddingService returns the current embedding client, nil if unset.
func (s *Services) EmbeddingService() driven.EmbeddingService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embedding
}

// LLMService returns the current completion client, nil if unset.
func (s *Services) LLMService() driven.LLMService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.llm
}

func (s *Services) SetEmbeddingService(svc driven.EmbeddingService) {
	s.mu.Lock()
	old := s.embedding
	s.embedding = svc
	s.config.SetEmbeddingAvailable(svc != nil)
	s.mu.Unlock()

	if old != nil && old != svc {
		_ = old.Close()
	}
}

func (s *Services) SetLLMService(svc driven.LLMService) {
	s.mu.Lock()
	old := s.llm
	s.llm = svc
	s.config.SetLLMAvailable(svc != nil)
	s.mu.Unlock()

	if old != nil && old != svc {
		_ = old.Close()
	}
}

// ValidateAndSetEmbedding installs svc after checking that it produces
// vectors of the index's length and that the provider answers. A rejected
// client is closed and the current one stays in place.
func (s *Services) ValidateAndSetEmbedding(ctx context.Context, svc driven.EmbeddingService) error {
	if svc == nil {
		s.SetEmbeddingService(nil)
		return nil
	}

	if want := s.config.Dimensions; want > 0 && svc.Dimensions() != want {
		_ = svc.Close()
		return fmt.Errorf("%w: model %s produces %d, index expects %d",
			domain.ErrDimensionMismatch, svc.Model(), svc.Dimensions(), want)
	}
	if err := svc.HealthCheck(ctx); err != nil {
		_ = svc.Close()
		return fmt.Errorf("embedding model %s: %w", svc.Model(), err)
	}

	s.SetEmbeddingService(svc)
	return nil
}

// ValidateAndSetLLM installs svc once the provider answers.
func (s *Services) ValidateAndSetLLM(ctx context.Context, svc driven.LLMService) error {
	if svc == nil {
		s.SetLLMService(nil)
		return nil
	}
	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		return fmt.Errorf("language model %s: %w", svc.Model(), err)
	}

	s.SetLLMService(svc)
	return nil
}

// Close releases both clients and clears the capability flags.
func (s *Services) Close() error {
	s.SetEmbeddingService(nil)
	s.SetLLMService(nil)
	return nil
}
