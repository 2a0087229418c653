// Package llm provides the Anthropic Messages client and the language-model
// decision oracle that chooses each agent's daily action.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	defaultURL   = "https://api.anthropic.com/v1/messages"
	apiVersion   = "2023-06-01"
	DefaultModel = "claude-haiku-4-5-20251001"
)

// ErrRateLimited is returned when the per-minute call budget is spent.
var ErrRateLimited = errors.New("llm: rate limit exceeded")

// Client wraps the Anthropic Messages API.
type Client struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client

	// Rate limiting: max calls per minute.
	mu        sync.Mutex
	callCount int
	resetAt   time.Time
	maxPerMin int
}

// NewClient creates a new API client.
// Returns nil if apiKey is empty (oracle disabled).
func NewClient(apiKey, model string, maxPerMin int) *Client {
	if apiKey == "" {
		return nil
	}
	if model == "" {
		model = DefaultModel
	}
	if maxPerMin <= 0 {
		maxPerMin = 20
	}
	return &Client{
		apiKey:     apiKey,
		model:      model,
		url:        defaultURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		maxPerMin:  maxPerMin,
	}
}

// WithEndpoint points the client at a different Messages URL.
func (c *Client) WithEndpoint(url string) *Client {
	c.url = url
	return c
}

// Model returns the model the client calls.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
}

type response struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete sends a prompt and returns the response text.
func (c *Client) Complete(ctx context.Context, system, userPrompt string, maxTokens int) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("LLM client not configured")
	}

	c.mu.Lock()
	now := time.Now()
	if now.After(c.resetAt) {
		c.callCount = 0
		c.resetAt = now.Add(time.Minute)
	}
	if c.callCount >= c.maxPerMin {
		c.mu.Unlock()
		return "", fmt.Errorf("%w (%d calls/min)", ErrRateLimited, c.maxPerMin)
	}
	c.callCount++
	c.mu.Unlock()

	body, err := json.Marshal(request{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    system,
		Messages: []Message{
			{Role: "user", Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("API call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp response
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	if len(apiResp.Content) == 0 {
		return "", fmt.Errorf("empty response")
	}

	slog.Debug("llm call",
		"model", c.model,
		"input_tokens", apiResp.Usage.InputTokens,
		"output_tokens", apiResp.Usage.OutputTokens,
	)

	return apiResp.Content[0].Text, nil
}
