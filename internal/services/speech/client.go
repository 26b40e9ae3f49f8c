// Package speech wraps the HTTP text-to-speech service that narrates
// episode scripts.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tubecraft/internal/config"
	"tubecraft/internal/services"
)

const defaultHTTPTimeout = 180 * time.Second

// Client wraps the TTS synthesis API.
type Client struct {
	host       string
	voiceModel string
	voiceSpeed float64
	sampleRate int
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a speech client from configuration.
func NewClient(cfg config.Speech, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		host:       strings.TrimRight(strings.TrimSpace(cfg.Host), "/"),
		voiceModel: strings.TrimSpace(cfg.VoiceModel),
		voiceSpeed: cfg.VoiceSpeed,
		sampleRate: cfg.SampleRate,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.host == "" {
		client.host = "http://127.0.0.1:5002"
	}
	if client.voiceSpeed <= 0 {
		client.voiceSpeed = 1.0
	}
	return client
}

type synthesizeRequest struct {
	Text       string  `json:"text"`
	Voice      string  `json:"voice"`
	Speed      float64 `json:"speed"`
	SampleRate int     `json:"sample_rate"`
}

// Result describes a completed synthesis.
type Result struct {
	Path  string
	Bytes int64
}

// Synthesize sends narration text to the TTS service and writes the returned
// audio to outPath.
func (c *Client) Synthesize(ctx context.Context, text, outPath string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "", "speech synthesize", "narration text required", nil)
	}
	if outPath == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "", "speech synthesize", "output path required", nil)
	}

	payload := synthesizeRequest{
		Text:       text,
		Voice:      c.voiceModel,
		Speed:      c.voiceSpeed,
		SampleRate: c.sampleRate,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("speech request: encode body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/tts", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("speech request: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError("speech synthesize", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, classifyStatusError("speech synthesize", resp.StatusCode, string(body))
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, fmt.Errorf("speech synthesize: ensure output dir: %w", err)
	}
	file, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("speech synthesize: create output: %w", err)
	}
	written, err := io.Copy(file, resp.Body)
	if closeErr := file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(outPath)
		return nil, classifyTransportError("speech synthesize", err)
	}
	if written == 0 {
		_ = os.Remove(outPath)
		return nil, services.Wrap(services.ErrTransient, "", "speech synthesize", "empty audio payload", nil)
	}
	return &Result{Path: outPath, Bytes: written}, nil
}

// HealthCheck verifies the TTS service answers its health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/health", nil)
	if err != nil {
		return fmt.Errorf("speech health: new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError("speech health", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return classifyStatusError("speech health", resp.StatusCode, string(body))
	}
	return nil
}

func classifyTransportError(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, "", op, "request timed out", err)
	case errors.Is(err, context.Canceled):
		return services.Wrap(services.ErrCancelled, "", op, "request cancelled", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, "", op, "request timed out", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return services.Wrap(services.ErrTimeout, "", op, "request timed out", err)
	}
	return services.Wrap(services.ErrTransient, "", op, "request failed", err)
}

func classifyStatusError(op string, status int, body string) error {
	detail := fmt.Sprintf("http %d: %s", status, strings.TrimSpace(body))
	switch {
	case status == http.StatusTooManyRequests:
		return services.Wrap(services.ErrResourceExhausted, "", op, detail, nil)
	case status == http.StatusRequestTimeout:
		return services.Wrap(services.ErrTimeout, "", op, detail, nil)
	case status >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, "", op, detail, nil)
	default:
		return services.Wrap(services.ErrInvalidInput, "", op, detail, nil)
	}
}
