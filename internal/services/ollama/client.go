// Package ollama wraps the Ollama HTTP API for local LLM inference.
//
// The client is deliberately single-shot: it classifies failures via the
// services sentinels and leaves retry decisions to the caller.
package ollama

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
	"strings"
	"time"

	"tubecraft/internal/config"
	"tubecraft/internal/services"
)

const defaultHTTPTimeout = 300 * time.Second

// Client wraps the Ollama generate API.
type Client struct {
	host       string
	model      string
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

// NewClient constructs an Ollama client from configuration.
func NewClient(cfg config.Ollama, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		host:       strings.TrimRight(strings.TrimSpace(cfg.Host), "/"),
		model:      strings.TrimSpace(cfg.Model),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.host == "" {
		client.host = "http://127.0.0.1:11434"
	}
	return client
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Format  string         `json:"format,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("ollama request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Generate issues a non-streaming completion request and returns the raw
// response text.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.generate(ctx, systemPrompt, userPrompt, "")
}

// GenerateJSON issues a JSON-constrained completion request and decodes the
// payload into target, tolerating code fences and prose wrappers.
func (c *Client) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, target any) error {
	content, err := c.generate(ctx, systemPrompt, userPrompt, "json")
	if err != nil {
		return err
	}
	if err := DecodeModelJSON(content, target); err != nil {
		return services.Wrap(services.ErrTransient, "", "ollama generate", "parse model payload", err)
	}
	return nil
}

func (c *Client) generate(ctx context.Context, systemPrompt, userPrompt, format string) (string, error) {
	userPrompt = strings.TrimSpace(userPrompt)
	if userPrompt == "" {
		return "", services.Wrap(services.ErrInvalidInput, "", "ollama generate", "prompt required", nil)
	}
	if c.model == "" {
		return "", services.Wrap(services.ErrConfiguration, "", "ollama generate", "model required", nil)
	}

	payload := generateRequest{
		Model:  c.model,
		Prompt: userPrompt,
		System: strings.TrimSpace(systemPrompt),
		Format: format,
		Stream: false,
		Options: map[string]any{
			"temperature": 0.7,
		},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("ollama request: encode body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("ollama request: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError("ollama generate", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classifyTransportError("ollama generate", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", classifyStatusError("ollama generate", &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
		})
	}

	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", services.Wrap(services.ErrTransient, "", "ollama generate", "decode response", err)
	}
	if decoded.Error != "" {
		return "", classifyAPIError("ollama generate", decoded.Error)
	}
	content := strings.TrimSpace(decoded.Response)
	if content == "" {
		return "", services.Wrap(services.ErrTransient, "", "ollama generate", "empty response", nil)
	}
	return content, nil
}

// HealthCheck verifies the Ollama server is reachable and the configured
// model is available.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("ollama health: new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError("ollama health", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransportError("ollama health", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return classifyStatusError("ollama health", &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)})
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &tags); err != nil {
		return services.Wrap(services.ErrTransient, "", "ollama health", "decode tags", err)
	}
	for _, model := range tags.Models {
		if model.Name == c.model || strings.HasPrefix(model.Name, c.model+":") {
			return nil
		}
	}
	return services.Wrap(services.ErrConfiguration, "", "ollama health",
		fmt.Sprintf("model %q not available", c.model), nil)
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

func classifyStatusError(op string, statusErr *httpStatusError) error {
	switch {
	case statusErr.StatusCode == http.StatusTooManyRequests:
		return services.Wrap(services.ErrResourceExhausted, "", op, "rate limited", statusErr)
	case statusErr.StatusCode == http.StatusRequestTimeout:
		return services.Wrap(services.ErrTimeout, "", op, "server timeout", statusErr)
	case statusErr.StatusCode >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, "", op, "server error", statusErr)
	case statusErr.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrConfiguration, "", op, "endpoint or model not found", statusErr)
	default:
		return services.Wrap(services.ErrInvalidInput, "", op, "request rejected", statusErr)
	}
}

func classifyAPIError(op, message string) error {
	lowered := strings.ToLower(message)
	switch {
	case strings.Contains(lowered, "out of memory"), strings.Contains(lowered, "resource"):
		return services.Wrap(services.ErrResourceExhausted, "", op, message, nil)
	case strings.Contains(lowered, "not found"):
		return services.Wrap(services.ErrConfiguration, "", op, message, nil)
	default:
		return services.Wrap(services.ErrTransient, "", op, message, nil)
	}
}
