package ai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/custodia-labs/verag/internal/core/domain"
	"github.com/custodia-labs/verag/internal/core/ports/driven"
)

var _ driven.LLMService = (*OpenAILLM)(nil)

const defaultOpenAIChatModel = "gpt-4o-mini"

// OpenAILLM implements LLMService using the chat completions API.
type OpenAILLM struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewOpenAILLM(settings *domain.LLMSettings) (*OpenAILLM, error) {
	if settings == nil || settings.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", domain.ErrInvalidInput)
	}

	model := settings.Model
	if model == "" {
		model = defaultOpenAIChatModel
	}

	return &OpenAILLM{
		apiKey:  settings.APIKey,
		model:   model,
		baseURL: trimBaseURL(settings.BaseURL, defaultOpenAIBaseURL),
		client:  newHTTPClient(settings.Timeout),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// Generate sends the system and user turns and returns the first choice.
func (l *OpenAILLM) Generate(ctx context.Context, req driven.GenerateRequest) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	out, err := callOpenAI[chatCompletionResponse](ctx, l.client, l.baseURL, "/chat/completions", l.apiKey, chatCompletionRequest{
		Model:       l.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", domain.ErrEmptyCompletion)
	}

	return out.Choices[0].Message.Content, nil
}

func (l *OpenAILLM) Model() string {
	return l.model
}

// Ping lists models, which needs a valid key but no inference.
func (l *OpenAILLM) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create ping request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("OpenAI API returned status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}
	return nil
}

func (l *OpenAILLM) Close() error {
	l.client.CloseIdleConnections()
	return nil
}
