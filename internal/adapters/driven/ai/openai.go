package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// openAIErr is the error object OpenAI-compatible servers put in failed
// responses, and sometimes in 200 responses from proxies.
type openAIErr struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

func (e *openAIErr) err() error {
	return fmt.Errorf("OpenAI API error: %s (type: %s, code: %v)", e.Message, e.Type, e.Code)
}

// callOpenAI posts body to baseURL+path and decodes a 200 response into T.
// An error object in the body wins over the status code.
func callOpenAI[T any](ctx context.Context, client *http.Client, baseURL, path, apiKey string, body any) (*T, error) {
	resp, err := postJSON(ctx, client, baseURL+path, body, map[string]string{
		"Authorization": "Bearer " + apiKey,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}

	var envelope struct {
		Error *openAIErr `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error != nil {
		return nil, envelope.Error.err()
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenAI API returned status %d for %s", resp.StatusCode, path)
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", path, err)
	}
	return &out, nil
}
