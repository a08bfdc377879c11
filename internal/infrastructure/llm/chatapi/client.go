// Package chatapi implements the OpenAI-style chat completions wire format
// shared by the hosted providers.
package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/lore-assistant/internal/infrastructure/resilience"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type Response struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// Client posts chat requests to one completions endpoint.
type Client struct {
	Service    string
	Endpoint   string
	HTTPClient *http.Client
	Executor   *resilience.Executor
}

func NewClient(service, endpoint string, httpClient *http.Client, executor *resilience.Executor) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{
		Service:    service,
		Endpoint:   strings.TrimRight(endpoint, "/"),
		HTTPClient: httpClient,
		Executor:   executor,
	}
}

// Complete sends a system and user message and returns the first choice.
// Non-2xx replies come back as *resilience.StatusError.
func (c *Client) Complete(ctx context.Context, bearer, model, systemPrompt, userPrompt string) (string, error) {
	payload := Request{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s chat request: %w", c.Service, err)
	}

	return resilience.Call(ctx, c.Executor, c.Service+".chat", func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("create %s chat request: %w", c.Service, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+bearer)

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("%s chat request: %w", c.Service, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return "", resilience.NewStatusError(c.Service, "chat", resp)
		}
		var out Response
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("decode %s chat response: %w", c.Service, err)
		}
		if len(out.Choices) == 0 {
			return "", fmt.Errorf("%s chat response has no choices", c.Service)
		}
		return strings.TrimSpace(out.Choices[0].Message.Content), nil
	}, resilience.ClassifyHTTP)
}
