// Package llmclient implements the concrete ports.LLM adapter: an
// OpenAI-Chat-Completions-shaped HTTP client used for both the activity
// prompt and the judge prompt.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrTransient wraps any network, timeout, or non-2xx transport failure so
// the engine's transient-error branch can match it with errors.Is without
// inspecting HTTP status codes itself.
var ErrTransient = errors.New("llmclient: transient failure")

// Client talks to a Chat Completions compatible endpoint over HTTP.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
}

// New returns a Client with a sane default HTTP transport. baseURL should
// not include a trailing slash (e.g. "https://api.openai.com").
func New(baseURL, apiKey, model string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate satisfies ports.LLM.Generate: one chat completion over the
// activity's system prompt and the user's submitted text.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string, maxOutputTokens int) (string, error) {
	return c.complete(ctx, systemPrompt, userPrompt, maxOutputTokens)
}

// Complete satisfies ports.LLM.Complete / grader.LLMCaller: the same
// transport, used by the judge stage.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, maxOutputTokens int) (string, error) {
	return c.complete(ctx, systemPrompt, userPrompt, maxOutputTokens)
}

func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string, maxOutputTokens int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens: maxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("llmclient: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llmclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrTransient, err)
	}

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("%w: upstream status %d", ErrTransient, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("llmclient: decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("llmclient: upstream error: %s", parsed.Error.Message)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("llmclient: upstream status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llmclient: no choices in response")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
