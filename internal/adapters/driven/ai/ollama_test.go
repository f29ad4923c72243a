package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/verag/internal/core/domain"
	"github.com/custodia-labs/verag/internal/core/ports/driven"
)

func TestNewOllamaEmbedding_KnownModelDimensions(t *testing.T) {
	emb, err := NewOllamaEmbedding(&domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "mxbai-embed-large"})
	require.NoError(t, err)
	assert.Equal(t, 1024, emb.Dimensions())
	assert.Equal(t, "http://localhost:11434", emb.baseURL)
}

func TestNewOllamaEmbedding_UnknownModelNeedsDimensions(t *testing.T) {
	_, err := NewOllamaEmbedding(&domain.EmbeddingSettings{Model: "custom-embed"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	emb, err := NewOllamaEmbedding(&domain.EmbeddingSettings{Model: "custom-embed", Dimensions: 512})
	require.NoError(t, err)
	assert.Equal(t, 512, emb.Dimensions())
}

func TestOllamaEmbedding_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)

		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, []string{"a", "b"}, req.Input)

		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2],[0.3,0.4]]}`))
	}))
	defer server.Close()

	emb, err := NewOllamaEmbedding(&domain.EmbeddingSettings{BaseURL: server.URL})
	require.NoError(t, err)

	vecs, err := emb.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1, 0.2}, {0.3, 0.4}}, vecs)
}

func TestOllamaEmbedding_Embed_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1]]}`))
	}))
	defer server.Close()

	emb, _ := NewOllamaEmbedding(&domain.EmbeddingSettings{BaseURL: server.URL})
	_, err := emb.Embed(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestOllamaEmbedding_Embed_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer server.Close()

	emb, _ := NewOllamaEmbedding(&domain.EmbeddingSettings{BaseURL: server.URL})
	_, err := emb.EmbedQuery(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "status 404"))
	assert.True(t, strings.Contains(err.Error(), "model not found"))
}

func TestOllamaLLM_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req ollamaGenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2", req.Model)
		assert.Equal(t, "be brief", req.System)
		assert.False(t, req.Stream)
		require.NotNil(t, req.Options)
		assert.Equal(t, 400, req.Options.NumPredict)

		_, _ = w.Write([]byte(`{"response":"Two sources agree.","done":true}`))
	}))
	defer server.Close()

	llm, err := NewOllamaLLM(&domain.LLMSettings{BaseURL: server.URL})
	require.NoError(t, err)

	out, err := llm.Generate(context.Background(), driven.GenerateRequest{
		System: "be brief", Prompt: "q", MaxTokens: 400,
	})
	require.NoError(t, err)
	assert.Equal(t, "Two sources agree.", out)
}

func TestOllama_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	llm, _ := NewOllamaLLM(&domain.LLMSettings{BaseURL: server.URL})
	assert.NoError(t, llm.Ping(context.Background()))

	emb, _ := NewOllamaEmbedding(&domain.EmbeddingSettings{BaseURL: server.URL})
	assert.NoError(t, emb.HealthCheck(context.Background()))
}
