package domain

import "sync/atomic"

// RuntimeConfig is what /ready reports: the storage backends picked at boot
// and whether the model clients are currently installed.
type RuntimeConfig struct {
	LockBackend  string // "redis" or "postgres"
	QueueBackend string // "redis" or "postgres"
	Dimensions   int    // fixed for the lifetime of the chunks table

	embedder atomic.Bool
	llm      atomic.Bool
}

// NewRuntimeConfig starts with both model clients absent.
func NewRuntimeConfig(backend string, dimensions int) *RuntimeConfig {
	return &RuntimeConfig{
		LockBackend:  backend,
		QueueBackend: backend,
		Dimensions:   dimensions,
	}
}

func (c *RuntimeConfig) EmbeddingAvailable() bool { return c.embedder.Load() }
func (c *RuntimeConfig) LLMAvailable() bool       { return c.llm.Load() }

func (c *RuntimeConfig) SetEmbeddingAvailable(ok bool) { c.embedder.Store(ok) }
func (c *RuntimeConfig) SetLLMAvailable(ok bool)       { c.llm.Store(ok) }

// CanIngest needs only the embedder; chunks are stored without the LLM.
func (c *RuntimeConfig) CanIngest() bool {
	return c.EmbeddingAvailable()
}

// CanAnswer needs the embedder for the question and the LLM for the reply.
func (c *RuntimeConfig) CanAnswer() bool {
	return c.EmbeddingAvailable() && c.LLMAvailable()
}
