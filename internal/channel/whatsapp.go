// Package channel sends and fetches messages through the WhatsApp Cloud
// API (Meta Graph).
package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultBaseURL = "https://graph.facebook.com/v18.0"
	defaultTimeout = 30 * time.Second
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL for the Graph API.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger for the client.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client is a WhatsApp Cloud API client bound to one phone-number ID.
type Client struct {
	accessToken   string
	phoneNumberID string
	baseURL       string
	httpClient    *http.Client
	logger        *slog.Logger
}

// NewClient creates a delivery client.
func NewClient(accessToken, phoneNumberID string, opts ...ClientOption) *Client {
	c := &Client{
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		baseURL:       defaultBaseURL,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": body},
	}

	var resp sendResponse
	if err := c.postJSON(ctx, "/"+c.phoneNumberID+"/messages", payload, &resp); err != nil {
		return fmt.Errorf("channel: send text: %w", err)
	}

	if len(resp.Messages) > 0 {
		c.logger.Debug("text message sent",
			slog.String("to", to),
			slog.String("message_id", resp.Messages[0].ID),
		)
	}
	return nil
}

type uploadResponse struct {
	ID string `json:"id"`
}

// UploadMedia uploads binary media and returns the media handle.
func (c *Client) UploadMedia(ctx context.Context, data []byte, mimeType string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "response."+extensionFor(mimeType))
	if err != nil {
		return "", fmt.Errorf("channel: build multipart: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return "", fmt.Errorf("channel: build multipart: %w", err)
	}
	_ = mw.WriteField("type", mimeType)
	_ = mw.WriteField("messaging_product", "whatsapp")
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("channel: build multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+c.phoneNumberID+"/media", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	var resp uploadResponse
	if err := c.do(req, &resp); err != nil {
		return "", fmt.Errorf("channel: upload media: %w", err)
	}

	c.logger.Debug("media uploaded",
		slog.String("media_id", resp.ID),
		slog.String("mime", mimeType),
		slog.Int("size", len(data)),
	)
	return resp.ID, nil
}

// SendAudio uploads the audio bytes and sends an audio message referencing
// the uploaded media.
func (c *Client) SendAudio(ctx context.Context, to string, data []byte, mimeType string) error {
	mediaID, err := c.UploadMedia(ctx, data, mimeType)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "audio",
		"audio":             map[string]string{"id": mediaID},
	}

	var resp sendResponse
	if err := c.postJSON(ctx, "/"+c.phoneNumberID+"/messages", payload, &resp); err != nil {
		return fmt.Errorf("channel: send audio: %w", err)
	}
	return nil
}

type mediaMetadata struct {
	URL string `json:"url"`
}

// DownloadMedia fetches inbound media by handle: first the metadata for the
// download URL, then the bytes. Both calls use the same bearer credential.
func (c *Client) DownloadMedia(ctx context.Context, mediaID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+mediaID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	var meta mediaMetadata
	if err := c.do(req, &meta); err != nil {
		return nil, fmt.Errorf("channel: media metadata: %w", err)
	}

	fileReq, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.URL, nil)
	if err != nil {
		return nil, err
	}
	fileReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(fileReq)
	if err != nil {
		return nil, fmt.Errorf("channel: media download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("channel: media download failed (status %d): %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("channel: media download: %w", err)
	}

	c.logger.Debug("media downloaded",
		slog.String("media_id", mediaID),
		slog.Int("size", len(data)),
	)
	return data, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func extensionFor(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "audio/ogg"):
		return "ogg"
	case strings.HasPrefix(mimeType, "audio/wav"):
		return "wav"
	default:
		return "mp3"
	}
}
