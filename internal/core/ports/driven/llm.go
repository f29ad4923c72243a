package driven

import (
	"context"
)

// GenerateRequest is one grounded completion request.
type GenerateRequest struct {
	// System is the instruction given to the model
	System string

	// Prompt is the user turn: question plus enumerated sources
	Prompt string

	// MaxTokens bounds the completion length
	MaxTokens int

	// Temperature controls randomness (0 = deterministic)
	Temperature float64
}

// LLMService generates free-text completions
type LLMService interface {
	// Generate returns the model's completion for req
	Generate(ctx context.Context, req GenerateRequest) (string, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
