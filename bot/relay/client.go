// Package relay delivers user-composed text messages to a phone number
// through the external send-API.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pasindu8/telegrambot/core/logger"
	"log/slog"
)

// Config holds relay service settings. An empty URL disables the capability.
type Config struct {
	URL            string `yaml:"url" envconfig:"RELAY_URL"`
	APIKey         string `yaml:"api_key" envconfig:"RELAY_API_KEY"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"RELAY_TIMEOUT_SECONDS"`
}

// Enabled reports whether the relay capability is configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.URL) != ""
}

type sendRequest struct {
	Number  string `json:"number"`
	Message string `json:"message"`
}

type sendResponse struct {
	Status string `json:"status"`
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("relay: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is the HTTP client for the relay send-API.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient builds a relay client from config. Returns nil when the capability
// is not configured; a nil client means "relay unavailable" to callers.
func NewClient(cfg Config, opts ...Option) *Client {
	if !cfg.Enabled() {
		return nil
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	c := &Client{
		url:        strings.TrimSpace(cfg.URL),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send delivers message to number. Success is a 2xx response whose body decodes
// to {"status":"success"}; every other shape or status is a failure.
func (c *Client) Send(ctx context.Context, number, message string) error {
	body, err := json.Marshal(sendRequest{Number: number, Message: message})
	if err != nil {
		return fmt.Errorf("relay: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("relay: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn(ctx, "relay", "send",
			slog.String("status", "fail"),
			slog.Int("number_len", len(number)),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("relay: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("relay: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPStatusError{StatusCode: resp.StatusCode, URL: c.url, Body: strings.TrimSpace(string(raw))}
	}

	var payload sendResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("relay: decode response: %w", err)
	}
	if payload.Status != "success" {
		return fmt.Errorf("relay: send rejected with status %q", payload.Status)
	}

	logger.Info(ctx, "relay", "send",
		slog.String("status", "ok"),
		slog.Int("number_len", len(number)),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}
