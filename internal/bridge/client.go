// Package bridge wraps the speech provider: speech-to-text, text-to-speech
// and translation, with language-code normalization.
package bridge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
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
	defaultBaseURL = "https://api.sarvam.ai"

	// MaxTTSChars is the provider's input ceiling for speech synthesis.
	// Longer text is truncated before the call.
	MaxTTSChars = 2500

	defaultTimeout = 30 * time.Second
)

// ErrEmptyTranscript is returned when STT yields no usable text (silence,
// too-short clips). The caller must ask the user to retry and must not
// proceed to reasoning.
var ErrEmptyTranscript = errors.New("bridge: empty transcript")

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL for the API.
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

// WithTTSVoice sets the speaker and model used for synthesis.
func WithTTSVoice(speaker, model string) ClientOption {
	return func(c *Client) {
		c.ttsSpeaker = speaker
		c.ttsModel = model
	}
}

// Client is an HTTP client for the speech provider.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	ttsSpeaker string
	ttsModel   string
}

// NewClient creates a speech provider client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:     slog.Default(),
		ttsSpeaker: "anushka",
		ttsModel:   "bulbul:v2",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transcription is the result of a speech-to-text call.
type Transcription struct {
	Transcript   string
	LanguageCode string
	Confidence   float64
}

type sttResponse struct {
	Transcript   string  `json:"transcript"`
	LanguageCode string  `json:"language_code"`
	Confidence   float64 `json:"confidence"`
}

// SpeechToText transcribes audio, returning the transcript and the language
// the provider detected. languageHint may be empty.
func (c *Client) SpeechToText(ctx context.Context, audio []byte, languageHint string) (*Transcription, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "input.ogg")
	if err != nil {
		return nil, fmt.Errorf("bridge: build multipart: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, fmt.Errorf("bridge: build multipart: %w", err)
	}
	if languageHint != "" {
		_ = mw.WriteField("language_code", NormalizeLanguage(languageHint))
	}
	_ = mw.WriteField("model", "saarika:v2")
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("bridge: build multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/speech-to-text", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.setAuth(req)

	var out sttResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}

	if strings.TrimSpace(out.Transcript) == "" {
		return nil, ErrEmptyTranscript
	}

	lang := out.LanguageCode
	if lang == "" {
		lang = NormalizeLanguage(languageHint)
	}

	c.logger.Debug("speech transcribed",
		slog.String("language", lang),
		slog.Int("transcript_len", len(out.Transcript)),
	)

	return &Transcription{
		Transcript:   out.Transcript,
		LanguageCode: lang,
		Confidence:   out.Confidence,
	}, nil
}

type translateRequest struct {
	Input              string `json:"input"`
	SourceLanguageCode string `json:"source_language_code"`
	TargetLanguageCode string `json:"target_language_code"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
}

// Translate converts text between languages. Pass AutoCode as source to let
// the provider detect the input language; the bridge never does its own
// detection for translation requests.
func (c *Client) Translate(ctx context.Context, text, source, target string) (string, error) {
	payload := translateRequest{
		Input:              text,
		SourceLanguageCode: NormalizeLanguage(source),
		TargetLanguageCode: NormalizeLanguage(target),
	}

	req, err := c.newJSONRequest(ctx, "/translate", payload)
	if err != nil {
		return "", err
	}

	var out translateResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.TranslatedText, nil
}

type ttsRequest struct {
	Inputs             []string `json:"inputs"`
	TargetLanguageCode string   `json:"target_language_code"`
	Speaker            string   `json:"speaker,omitempty"`
	Model              string   `json:"model,omitempty"`
}

type ttsResponse struct {
	Audios []string `json:"audios"`
}

// TextToSpeech synthesizes speech for text in the target language, returning
// decoded audio chunks. Input beyond MaxTTSChars is dropped before the call;
// this can cut off clinical content, so the truncation is logged. The full
// text always also goes out as a plain message.
func (c *Client) TextToSpeech(ctx context.Context, text, target string) ([][]byte, error) {
	// The provider limit is characters, not bytes. Cutting on bytes would
	// shrink the limit threefold for Indic scripts and could split a rune.
	if runes := []rune(text); len(runes) > MaxTTSChars {
		c.logger.Warn("truncating text for speech synthesis",
			slog.Int("original_chars", len(runes)),
			slog.Int("max", MaxTTSChars),
		)
		text = string(runes[:MaxTTSChars])
	}

	payload := ttsRequest{
		Inputs:             []string{text},
		TargetLanguageCode: NormalizeLanguage(target),
		Speaker:            c.ttsSpeaker,
		Model:              c.ttsModel,
	}

	req, err := c.newJSONRequest(ctx, "/text-to-speech", payload)
	if err != nil {
		return nil, err
	}

	var out ttsResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}

	chunks := make([][]byte, 0, len(out.Audios))
	for i, encoded := range out.Audios {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("bridge: decode audio chunk %d: %w", i, err)
		}
		chunks = append(chunks, raw)
	}
	return chunks, nil
}

func (c *Client) newJSONRequest(ctx context.Context, path string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("bridge: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)
	return req, nil
}

func (c *Client) setAuth(req *http.Request) {
	req.Header.Set("api-subscription-key", c.apiKey)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bridge: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("bridge: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bridge: API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("bridge: unmarshal response: %w", err)
	}
	return nil
}
