package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAI implements Completer for any API speaking the OpenAI Chat
// Completions wire format (OpenAI, OpenRouter, Ollama, vLLM, Gemini's
// OpenAI-compatible endpoint).
type OpenAI struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewOpenAI creates a completer. baseURL is the API root, for example
// https://api.openai.com/v1.
func NewOpenAI(baseURL, apiKey, model string) *OpenAI {
	return &OpenAI{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
	}
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type openaiResponse struct {
	Choices []struct {
		Message openaiMessage `json:"message"`
	} `json:"choices"`
}

// ProviderError is a non-2xx answer from the completion API.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm/openai: HTTP %d: %s", e.StatusCode, e.Body)
}

// Complete sends one system+user exchange and returns the first choice.
func (o *OpenAI) Complete(ctx context.Context, system, prompt string) (string, error) {
	body, err := json.Marshal(openaiRequest{
		Model: o.model,
		Messages: []openaiMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm/openai: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm/openai: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm/openai: sending request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("llm/openai: reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ProviderError{StatusCode: resp.StatusCode, Body: truncate(string(data), 500)}
	}

	var decoded openaiResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", fmt.Errorf("llm/openai: decoding response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("llm/openai: response has no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}
