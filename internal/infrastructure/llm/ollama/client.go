// Package ollama talks to a local Ollama server for embeddings and chat.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/lore-assistant/internal/core/domain"
	"github.com/kirillkom/lore-assistant/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Embedder prefixes text with its task mode before embedding, so documents
// and queries land in the matching halves of an asymmetric model.
type Embedder struct {
	client    *Client
	model     string
	dimension int
}

func NewEmbedder(client *Client, model string, dimension int) *Embedder {
	return &Embedder{client: client, model: model, dimension: dimension}
}

func (e *Embedder) Dimension() int {
	return e.dimension
}

func (e *Embedder) Embed(ctx context.Context, text string, mode domain.TaskMode) ([]float32, error) {
	if mode == "" {
		mode = domain.TaskDocument
	}
	request := map[string]any{
		"model": e.model,
		"input": string(mode) + ": " + text,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, domain.WrapError(domain.ErrEmbedding, "ollama embed", err)
	}
	if len(response.Embeddings) == 0 || len(response.Embeddings[0]) == 0 {
		return nil, domain.WrapError(domain.ErrEmbedding, "ollama embed", fmt.Errorf("empty embedding result"))
	}
	return response.Embeddings[0], nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatModel is the local inference variant of the answer provider.
type ChatModel struct {
	client *Client
	model  string
	device string
}

func NewChatModel(client *Client, model, device string) *ChatModel {
	return &ChatModel{client: client, model: model, device: strings.ToLower(strings.TrimSpace(device))}
}

func (m *ChatModel) Name() string {
	return "local:" + m.model
}

func (m *ChatModel) Answer(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	request := map[string]any{
		"model": m.model,
		"messages": []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		"stream": false,
	}
	if options := m.deviceOptions(); options != nil {
		request["options"] = options
	}

	var response struct {
		Message chatMessage `json:"message"`
	}
	if err := m.client.postJSON(ctx, "/api/chat", request, &response, "chat"); err != nil {
		return "", domain.WrapError(domain.ErrProvider, "ollama chat", err)
	}
	content := strings.TrimSpace(response.Message.Content)
	if content == "" {
		return "", domain.WrapError(domain.ErrProvider, "ollama chat", fmt.Errorf("empty completion"))
	}
	return content, nil
}

// deviceOptions maps the configured compute device onto Ollama runtime
// options. Only cpu changes anything; gpu and auto keep the server default.
func (m *ChatModel) deviceOptions() map[string]any {
	switch m.device {
	case "cpu":
		return map[string]any{"num_gpu": 0}
	default:
		return nil
	}
}

// Ping checks that the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	var out struct {
		Version string `json:"version"`
	}
	return c.getJSON(ctx, "/api/version", &out, "version")
}
