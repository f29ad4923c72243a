package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/verag/internal/core/domain"
	"github.com/custodia-labs/verag/internal/core/ports/driven"
)

const (
	// DefaultEmbedBatchSize bounds the inputs sent in one provider request
	DefaultEmbedBatchSize = 96

	// DefaultProviderTimeout bounds each provider request
	DefaultProviderTimeout = 60 * time.Second
)

// EmbedderConfig configures batching and checks for an Embedder.
type EmbedderConfig struct {
	// BatchSize caps inputs per request; the provider's own limit wins if lower
	BatchSize int

	// Dimensions is the expected vector length; 0 takes it from the provider
	Dimensions int

	// Timeout bounds each provider request
	Timeout time.Duration
}

// Embedder splits texts into provider-sized batches and reassembles the
// vectors in input order. A failed batch fails the whole call.
type Embedder struct {
	svc        driven.EmbeddingService
	batchSize  int
	dimensions int
	timeout    time.Duration
}

// NewEmbedder wraps svc with batching. svc may be nil, in which case every
// call fails with domain.ErrServiceUnavailable.
func NewEmbedder(svc driven.EmbeddingService, cfg EmbedderConfig) *Embedder {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultEmbedBatchSize
	}
	dims := cfg.Dimensions
	if svc != nil {
		if limit := svc.MaxBatchSize(); limit > 0 && limit < batch {
			batch = limit
		}
		if dims <= 0 {
			dims = svc.Dimensions()
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}

	return &Embedder{
		svc:        svc,
		batchSize:  batch,
		dimensions: dims,
		timeout:    timeout,
	}
}

// BatchSize returns the effective per-request cap.
func (e *Embedder) BatchSize() int {
	return e.batchSize
}

// Embed returns exactly one vector per text, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.svc == nil {
		return nil, fmt.Errorf("embedding provider not configured: %w", domain.ErrServiceUnavailable)
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vecs, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end-1, err)
		}
		for i, v := range vecs {
			if e.dimensions > 0 && len(v) != e.dimensions {
				return nil, fmt.Errorf("%w: input %d has %d dimensions, want %d",
					domain.ErrDimensionMismatch, start+i, len(v), e.dimensions)
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// EmbedQuery embeds a single query as Embed([query])[0].
func (e *Embedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *Embedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	vecs, err := e.svc.Embed(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(batch) {
		return nil, fmt.Errorf("provider returned %d vectors for %d inputs", len(vecs), len(batch))
	}
	return vecs, nil
}
