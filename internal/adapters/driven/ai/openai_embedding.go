package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/custodia-labs/verag/internal/core/domain"
	"github.com/custodia-labs/verag/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*OpenAIEmbedding)(nil)

const (
	defaultOpenAIEmbeddingModel = "text-embedding-3-small"
	openAIMaxBatch              = 2048 // inputs per embeddings request
)

// openAIModelDimensions are native output sizes. Only the v3 models accept
// a smaller size through the dimensions parameter.
var openAIModelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIEmbedding embeds chunk and question text through /embeddings on
// OpenAI or any compatible server set as BaseURL.
type OpenAIEmbedding struct {
	apiKey     string
	model      string
	baseURL    string
	dimensions int
	// shorten is set when the requested size differs from the model's
	// native size and the model accepts a dimensions parameter.
	shorten bool
	client  *http.Client
}

// NewOpenAIEmbedding resolves the vector size. A zero size takes the model's
// native one; a size the model cannot produce is ErrDimensionMismatch.
func NewOpenAIEmbedding(settings *domain.EmbeddingSettings) (*OpenAIEmbedding, error) {
	if settings == nil || settings.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", domain.ErrInvalidInput)
	}

	model := settings.Model
	if model == "" {
		model = defaultOpenAIEmbeddingModel
	}

	native, known := openAIModelDimensions[model]
	dimensions := settings.Dimensions
	shorten := false
	switch {
	case dimensions <= 0 && known:
		dimensions = native
	case dimensions <= 0:
		dimensions = 1536
	case known && dimensions != native:
		if !strings.HasPrefix(model, "text-embedding-3") {
			return nil, fmt.Errorf("%w: model %s is fixed at %d dimensions, got %d",
				domain.ErrDimensionMismatch, model, native, dimensions)
		}
		shorten = true
	}

	return &OpenAIEmbedding{
		apiKey:     settings.APIKey,
		model:      model,
		baseURL:    trimBaseURL(settings.BaseURL, defaultOpenAIBaseURL),
		dimensions: dimensions,
		shorten:    shorten,
		client:     newHTTPClient(settings.Timeout),
	}, nil
}

type embeddingRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
	Dimensions     int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one vector per text, in input order.
func (e *OpenAIEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if len(texts) > openAIMaxBatch {
		return nil, fmt.Errorf("%w: %d inputs exceeds batch limit %d", domain.ErrInvalidInput, len(texts), openAIMaxBatch)
	}

	reqBody := embeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: "float",
	}
	if e.shorten {
		reqBody.Dimensions = e.dimensions
	}

	resp, err := callOpenAI[embeddingResponse](ctx, e.client, e.baseURL, "/embeddings", e.apiKey, reqBody)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("OpenAI returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	// vectors are matched to inputs by index, not arrival order
	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(embeddings) || embeddings[d.Index] != nil {
			return nil, fmt.Errorf("OpenAI returned invalid embedding index %d", d.Index)
		}
		embeddings[d.Index] = d.Embedding
	}

	return embeddings, nil
}

func (e *OpenAIEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embeddings, err := e.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (e *OpenAIEmbedding) Dimensions() int {
	return e.dimensions
}

func (e *OpenAIEmbedding) Model() string {
	return e.model
}

func (e *OpenAIEmbedding) MaxBatchSize() int {
	return openAIMaxBatch
}

// HealthCheck embeds a probe string, which proves both key and model.
func (e *OpenAIEmbedding) HealthCheck(ctx context.Context) error {
	_, err := e.EmbedQuery(ctx, "health check")
	return err
}

func (e *OpenAIEmbedding) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
