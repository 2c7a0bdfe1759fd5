// Package llm is a client for OpenAI-compatible chat completion servers
// (llama.cpp, Ollama, vLLM).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"citerag/internal/apperr"
	"citerag/internal/contextutil"
	"citerag/internal/domain"
)

// Config configures a Client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	// MaxTokens limits the completion length; 0 leaves it to the server.
	MaxTokens int
	Timeout   time.Duration
}

// Client is a client for interacting with a chat completions API.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient creates a new LLM client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, apperr.Invalid("llm.base_url", "cannot be blank")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Complete sends the prompt as a system and a user message and returns the
// first choice's content.
func (c *Client) Complete(ctx context.Context, prompt domain.Prompt) (string, error) {
	messages := make([]Message, 0, 2)
	if strings.TrimSpace(prompt.System) != "" {
		messages = append(messages, Message{Role: "system", Content: prompt.System})
	}
	messages = append(messages, Message{Role: "user", Content: prompt.User})
	return c.ChatWithMessages(ctx, messages)
}

// ChatWithMessages sends a chat completion request to the LLM API.
func (c *Client) ChatWithMessages(ctx context.Context, messages []Message) (string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	temperature := c.cfg.Temperature
	payload := ChatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: &temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: failed to send request: %v", apperr.ErrExternalService, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: bad status %d: %s", apperr.ErrExternalService, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %v", apperr.ErrExternalService, err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", apperr.ErrExternalService)
	}

	logger.DebugContext(ctx, "chat completion finished",
		"model", c.cfg.Model,
		"finish_reason", chatResp.Choices[0].FinishReason,
		"duration_ms", time.Since(start).Milliseconds())
	return chatResp.Choices[0].Message.Content, nil
}

// Models lists the models served by the backend. It doubles as a readiness probe.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list models: %v", apperr.ErrExternalService, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: bad status %d", apperr.ErrExternalService, resp.StatusCode)
	}

	var models ModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		return nil, fmt.Errorf("%w: failed to decode models response: %v", apperr.ErrExternalService, err)
	}
	ids := make([]string, 0, len(models.Data))
	for _, m := range models.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")
}
