package driven

import (
	"context"

	"github.com/custodia-labs/verag/internal/core/domain"
)

// VectorStore persists chunk text with vectors and runs project-scoped
// similarity search. It is the single source of truth for chunks.
type VectorStore interface {
	// ReplaceChunks atomically deletes every chunk of documentID and inserts
	// chunks with ordinals 0..n-1 in input order. Readers observe either the
	// previous full set or the new full set. Vectors whose length differs
	// from Dimensions() are rejected with domain.ErrDimensionMismatch before
	// anything is written. Returns the number of chunks stored.
	ReplaceChunks(ctx context.Context, documentID, projectID string, chunks []domain.ChunkInput) (int, error)

	// Search returns at most topK chunks of projectID ordered by descending
	// cosine similarity to query. An empty project yields an empty slice.
	Search(ctx context.Context, projectID string, query []float32, topK int) ([]*domain.ScoredChunk, error)

	// GetByDocument returns the chunks of a document ordered by ordinal.
	// withEmbeddings controls whether vectors are loaded.
	GetByDocument(ctx context.Context, documentID string, withEmbeddings bool) ([]*domain.Chunk, error)

	// Dimensions returns the configured vector length
	Dimensions() int

	// Ping checks if the store backend is healthy
	Ping(ctx context.Context) error
}
