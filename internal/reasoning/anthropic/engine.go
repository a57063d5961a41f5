package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/nidaan-ai/triage-gateway/internal/reasoning"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 1024

	// defaultMaxRetries is the retry budget for overload errors.
	defaultMaxRetries = 2
	// defaultBaseDelay is the base delay for exponential backoff.
	defaultBaseDelay = 500 * time.Millisecond
	// defaultMaxDelay caps the backoff delay.
	defaultMaxDelay = 5 * time.Second
)

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithModel overrides the model.
func WithModel(model string) EngineOption {
	return func(e *Engine) {
		e.model = model
	}
}

// WithEngineBaseURL sets a custom base URL for the API.
func WithEngineBaseURL(baseURL string) EngineOption {
	return func(e *Engine) {
		e.baseURL = baseURL
	}
}

// WithEngineHTTPClient sets a custom HTTP client.
func WithEngineHTTPClient(httpClient *http.Client) EngineOption {
	return func(e *Engine) {
		e.httpClient = httpClient
	}
}

// WithMaxRetries sets the retry budget for overload errors.
func WithMaxRetries(n int) EngineOption {
	return func(e *Engine) {
		e.maxRetries = n
	}
}

// WithLogger sets the logger for the engine.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// Engine implements reasoning.Engine using the Messages API.
type Engine struct {
	client     *Client
	model      string
	baseURL    string
	httpClient *http.Client
	maxRetries int
	logger     *slog.Logger
}

// NewEngine creates an Anthropic-backed reasoning engine.
func NewEngine(apiKey string, opts ...EngineOption) *Engine {
	e := &Engine{
		model:      defaultModel,
		maxRetries: defaultMaxRetries,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	var clientOpts []ClientOption
	if e.baseURL != "" {
		clientOpts = append(clientOpts, WithBaseURL(e.baseURL))
	}
	if e.httpClient != nil {
		clientOpts = append(clientOpts, WithHTTPClient(e.httpClient))
	}
	e.client = NewClient(apiKey, clientOpts...)
	return e
}

func (e *Engine) Name() string {
	return "anthropic"
}

// Complete sends the message list and returns the first text block.
// Overloaded (529) responses are retried with exponential backoff.
func (e *Engine) Complete(ctx context.Context, system string, messages []reasoning.Message) (string, error) {
	req := &MessagesRequest{
		Model:     e.model,
		MaxTokens: defaultMaxTokens,
		System:    system,
		Messages:  make([]RequestMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, RequestMessage{Role: m.Role, Content: m.Content})
	}

	var resp *MessagesResponse
	var err error

	for attempt := 0; ; attempt++ {
		resp, err = e.client.CreateMessage(ctx, req)
		if err == nil {
			break
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.Overloaded() || attempt >= e.maxRetries {
			return "", err
		}

		delay := time.Duration(float64(defaultBaseDelay) * math.Pow(2, float64(attempt)))
		if delay > defaultMaxDelay {
			delay = defaultMaxDelay
		}
		e.logger.Warn("reasoning engine overloaded, retrying",
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}

	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("anthropic: response contained no text block")
}
