// Package oracle is a small client for OpenAI-compatible chat-completions
// endpoints. It backs the LLM and AI builtins.
package oracle

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

// DefaultEndpoint is the OpenAI chat-completions URL.
const DefaultEndpoint = "https://api.openai.com/v1/chat/completions"

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gpt-4o-mini"

// ErrNoAPIKey is returned by Complete when the client has no key.
var ErrNoAPIKey = errors.New("oracle: API key not set")

// Config describes one endpoint.
type Config struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
	// System is an optional system prompt sent before every request.
	System string
}

// Client talks to a chat-completions endpoint.
type Client struct {
	endpoint string
	model    string
	apiKey   string
	system   string
	http     *http.Client
}

// ChatMessage represents a message in the chat
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest represents the request body
type ChatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

// ChatCompletionResponse represents the response body
type ChatCompletionResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// New creates a client from cfg, filling in defaults.
func New(cfg Config) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		model:    model,
		apiKey:   cfg.APIKey,
		system:   cfg.System,
		http:     &http.Client{Timeout: timeout},
	}
}

// Model returns the model name sent with each request.
func (c *Client) Model() string { return c.model }

// Complete sends prompt as a single user message and returns the first
// choice's content.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	var messages []ChatMessage
	if c.system != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: c.system})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: prompt})

	jsonData, err := json.Marshal(ChatCompletionRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("oracle: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("oracle: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("oracle: reading response: %w", err)
	}

	var chatResp ChatCompletionResponse
	decodeErr := json.Unmarshal(body, &chatResp)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && chatResp.Error != nil && chatResp.Error.Message != "" {
			return "", fmt.Errorf("oracle: %s: %s", resp.Status, chatResp.Error.Message)
		}
		return "", fmt.Errorf("oracle: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if decodeErr != nil {
		return "", fmt.Errorf("oracle: decoding response: %w", decodeErr)
	}
	if len(chatResp.Choices) == 0 {
		return "", errors.New("oracle: no choices in response")
	}
	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}
