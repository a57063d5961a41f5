// Package openai implements the reasoning.Engine interface against an
// OpenAI-compatible chat-completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nidaan-ai/triage-gateway/internal/reasoning"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o"
)

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithBaseURL sets a custom base URL, e.g. a local inference server.
func WithBaseURL(baseURL string) EngineOption {
	return func(e *Engine) {
		e.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) EngineOption {
	return func(e *Engine) {
		e.httpClient = httpClient
	}
}

// WithModel overrides the model.
func WithModel(model string) EngineOption {
	return func(e *Engine) {
		e.model = model
	}
}

// Engine implements reasoning.Engine using chat completions.
type Engine struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewEngine creates an OpenAI-compatible reasoning engine.
func NewEngine(apiKey string, opts ...EngineOption) *Engine {
	e := &Engine{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string {
	return "openai"
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends the message list with the system prompt prepended as a
// system message and returns the first choice's content.
func (e *Engine) Complete(ctx context.Context, system string, messages []reasoning.Message) (string, error) {
	req := chatRequest{
		Model:    e.model,
		Messages: make([]chatMessage, 0, len(messages)+1),
	}
	if system != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: system})
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai: API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("openai: unmarshal response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("openai: response contained no choices")
	}
	return result.Choices[0].Message.Content, nil
}
