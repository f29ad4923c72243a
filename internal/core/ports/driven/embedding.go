package driven

import "context"

// EmbeddingService maps text to fixed-length vectors. One deployment uses
// one model, so every vector it returns has Dimensions() entries.
type EmbeddingService interface {
	// Embed returns one vector per input, in input order. Inputs beyond
	// MaxBatchSize are the caller's problem; see services.Embedder.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single retrieval query.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	Dimensions() int
	Model() string

	// MaxBatchSize is the provider's per-request input limit, 0 when unbounded.
	MaxBatchSize() int

	// HealthCheck confirms the provider answers with the configured model.
	HealthCheck(ctx context.Context) error

	Close() error
}
