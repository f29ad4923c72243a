package domain

import (
	"fmt"
	"time"
)

// AIProvider names a backend serving embeddings or completions.
type AIProvider string

const (
	AIProviderOpenAI AIProvider = "openai"
	AIProviderOllama AIProvider = "ollama"
)

// keyless providers are self-hosted and authenticate nothing.
var keyless = map[AIProvider]bool{
	AIProviderOllama: true,
}

// IsValid reports whether the provider has an adapter.
func (p AIProvider) IsValid() bool {
	return p == AIProviderOpenAI || p == AIProviderOllama
}

func (p AIProvider) RequiresAPIKey() bool {
	return !keyless[p]
}

// usable is true once a provider is named and, if it needs one, a key is set.
func (p AIProvider) usable(apiKey string) bool {
	return p != "" && (apiKey != "" || !p.RequiresAPIKey())
}

// MaxEmbeddingDimensions is the largest vector pgvector can index with HNSW.
const MaxEmbeddingDimensions = 2000

// EmbeddingSettings select and size the embedding model. Dimensions must
// match the vector column of the chunks table.
type EmbeddingSettings struct {
	Provider   AIProvider    `json:"provider" yaml:"provider"`
	Model      string        `json:"model" yaml:"model"`
	APIKey     string        `json:"-" yaml:"api_key"`
	BaseURL    string        `json:"base_url,omitempty" yaml:"base_url"`
	Dimensions int           `json:"dimensions" yaml:"dimensions"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
}

// IsConfigured reports whether an embedding client can be built from e.
// An unconfigured embedder leaves the API up but ingestion and answering off.
func (e *EmbeddingSettings) IsConfigured() bool {
	return e.Provider.usable(e.APIKey)
}

// LLMSettings select the completion model used to write answers.
type LLMSettings struct {
	Provider AIProvider    `json:"provider" yaml:"provider"`
	Model    string        `json:"model" yaml:"model"`
	APIKey   string        `json:"-" yaml:"api_key"`
	BaseURL  string        `json:"base_url,omitempty" yaml:"base_url"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
}

func (l *LLMSettings) IsConfigured() bool {
	return l.Provider.usable(l.APIKey)
}

// AISettings pairs the two model selections for validation.
type AISettings struct {
	Embedding EmbeddingSettings `json:"embedding" yaml:"embedding"`
	LLM       LLMSettings       `json:"llm" yaml:"llm"`
}

// Validate rejects providers without an adapter. Empty providers are allowed.
func (s *AISettings) Validate() error {
	if p := s.Embedding.Provider; p != "" && !p.IsValid() {
		return fmt.Errorf("%w: embedding provider %q", ErrInvalidProvider, p)
	}
	if p := s.LLM.Provider; p != "" && !p.IsValid() {
		return fmt.Errorf("%w: llm provider %q", ErrInvalidProvider, p)
	}
	return nil
}
