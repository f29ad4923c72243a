package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/verag/internal/core/domain"
	"github.com/custodia-labs/verag/internal/core/ports/driven"
)

var (
	_ driven.EmbeddingService = (*OllamaEmbedding)(nil)
	_ driven.LLMService       = (*OllamaLLM)(nil)
)

const (
	defaultOllamaBaseURL        = "http://localhost:11434"
	defaultOllamaEmbeddingModel = "nomic-embed-text"
	defaultOllamaLLMModel       = "llama3.2"
	defaultOllamaLLMTimeout     = 120 * time.Second

	// ollamaMaxBatch keeps a single /api/embed call within typical model context.
	ollamaMaxBatch = 64
)

var ollamaModelDimensions = map[string]int{
	"nomic-embed-text":  768,
	"mxbai-embed-large": 1024,
	"all-minilm":        384,
}

// OllamaEmbedding generates embeddings with a local Ollama server.
type OllamaEmbedding struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
}

// NewOllamaEmbedding creates an Ollama embedding service. Dimensions come
// from settings, or from the known model table.
func NewOllamaEmbedding(settings *domain.EmbeddingSettings) (*OllamaEmbedding, error) {
	if settings == nil {
		settings = &domain.EmbeddingSettings{Provider: domain.AIProviderOllama}
	}
	model := settings.Model
	if model == "" {
		model = defaultOllamaEmbeddingModel
	}
	dims := settings.Dimensions
	if dims <= 0 {
		known, ok := ollamaModelDimensions[model]
		if !ok {
			return nil, fmt.Errorf("%w: dimensions required for ollama model %s", domain.ErrInvalidInput, model)
		}
		dims = known
	}

	return &OllamaEmbedding{
		baseURL:    trimBaseURL(settings.BaseURL, defaultOllamaBaseURL),
		model:      model,
		dimensions: dims,
		client:     newHTTPClient(settings.Timeout),
	}, nil
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed sends all texts in one /api/embed call
func (o *OllamaEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := postJSON(ctx, o.client, o.baseURL+"/api/embed", ollamaEmbedRequest{
		Model: o.model,
		Input: texts,
	}, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(out.Embeddings), len(texts))
	}
	return out.Embeddings, nil
}

// EmbedQuery embeds a single query string
func (o *OllamaEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := o.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (o *OllamaEmbedding) Dimensions() int   { return o.dimensions }
func (o *OllamaEmbedding) Model() string     { return o.model }
func (o *OllamaEmbedding) MaxBatchSize() int { return ollamaMaxBatch }

// HealthCheck checks /api/tags without running inference.
func (o *OllamaEmbedding) HealthCheck(ctx context.Context) error {
	return pingOllama(ctx, o.client, o.baseURL)
}

func (o *OllamaEmbedding) Close() error {
	o.client.CloseIdleConnections()
	return nil
}

// OllamaLLM generates completions with a local Ollama server.
type OllamaLLM struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaLLM creates an Ollama completion service
func NewOllamaLLM(settings *domain.LLMSettings) (*OllamaLLM, error) {
	if settings == nil {
		settings = &domain.LLMSettings{Provider: domain.AIProviderOllama}
	}
	model := settings.Model
	if model == "" {
		model = defaultOllamaLLMModel
	}
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = defaultOllamaLLMTimeout
	}

	return &OllamaLLM{
		baseURL: trimBaseURL(settings.BaseURL, defaultOllamaBaseURL),
		model:   model,
		client:  newHTTPClient(timeout),
	}, nil
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	System  string         `json:"system,omitempty"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate calls /api/generate without streaming
func (o *OllamaLLM) Generate(ctx context.Context, req driven.GenerateRequest) (string, error) {
	resp, err := postJSON(ctx, o.client, o.baseURL+"/api/generate", ollamaGenerateRequest{
		Model:  o.model,
		System: req.System,
		Prompt: req.Prompt,
		Stream: false,
		Options: &ollamaOptions{
			NumPredict:  req.MaxTokens,
			Temperature: req.Temperature,
		},
	}, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	var out ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.Response, nil
}

func (o *OllamaLLM) Model() string { return o.model }

func (o *OllamaLLM) Ping(ctx context.Context) error {
	return pingOllama(ctx, o.client, o.baseURL)
}

func (o *OllamaLLM) Close() error {
	o.client.CloseIdleConnections()
	return nil
}

func pingOllama(ctx context.Context, client *http.Client, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: failed to create ping request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama: API returned status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}
	return nil
}
