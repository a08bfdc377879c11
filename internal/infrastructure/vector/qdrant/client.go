// Package qdrant is a VectorStore backed by the Qdrant REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/lore-assistant/internal/core/domain"
	"github.com/kirillkom/lore-assistant/internal/infrastructure/resilience"
)

const statusCompleted = "completed"

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu sync.Mutex
	ensured  map[string]int
}

type Option func(*Client)

func WithAPIKey(apiKey string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(apiKey)
	}
}

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
		httpClient: &http.Client{Timeout: 60 * time.Second},
		ensured:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnsureCollection creates a cosine collection of the given dimension unless
// it exists. An existing collection with another dimension is a configuration
// error.
func (c *Client) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	c.ensureMu.Lock()
	size, ok := c.ensured[collection]
	c.ensureMu.Unlock()
	if ok && size == dimension {
		return nil
	}

	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	err := c.do(ctx, "get_collection", http.MethodGet, collectionPath(collection), nil, &info)
	switch {
	case err == nil:
		existing := info.Result.Config.Params.Vectors.Size
		if existing != 0 && existing != dimension {
			return domain.WrapError(domain.ErrConfiguration, "qdrant ensure collection",
				fmt.Errorf("collection %q has dimension %d, embedder produces %d", collection, existing, dimension))
		}
	case resilience.StatusCode(err) == http.StatusNotFound:
		if err := c.createCollection(ctx, collection, dimension); err != nil {
			return err
		}
	default:
		return domain.WrapError(domain.ErrStore, "qdrant ensure collection", err)
	}

	c.ensureMu.Lock()
	c.ensured[collection] = dimension
	c.ensureMu.Unlock()
	return nil
}

func (c *Client) createCollection(ctx context.Context, collection string, dimension int) error {
	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	err := c.do(ctx, "create_collection", http.MethodPut, collectionPath(collection), reqBody, nil)
	// 409 when another writer created it first.
	if err != nil && resilience.StatusCode(err) != http.StatusConflict {
		return domain.WrapError(domain.ErrStore, "qdrant create collection", err)
	}
	return nil
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload domain.Payload `json:"payload"`
}

// Upsert waits for the write to be applied; any status other than completed
// is reported as a store error.
func (c *Client) Upsert(ctx context.Context, collection string, p domain.Point) error {
	reqBody := map[string]any{
		"points": []point{{ID: p.ID, Vector: p.Vector, Payload: p.Payload}},
	}
	var resp struct {
		Result struct {
			Status string `json:"status"`
		} `json:"result"`
	}
	if err := c.do(ctx, "upsert", http.MethodPut, collectionPath(collection)+"/points?wait=true", reqBody, &resp); err != nil {
		return domain.WrapError(domain.ErrStore, "qdrant upsert", err)
	}
	if resp.Result.Status != statusCompleted {
		return domain.WrapError(domain.ErrStore, "qdrant upsert", fmt.Errorf("point %s status %q", p.ID, resp.Result.Status))
	}
	return nil
}

func (c *Client) Query(ctx context.Context, collection string, vector []float32, limit int) ([]domain.SearchResult, error) {
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload domain.Payload `json:"payload"`
		} `json:"result"`
	}
	if err := c.do(ctx, "search", http.MethodPost, collectionPath(collection)+"/points/search", reqBody, &resp); err != nil {
		return nil, domain.WrapError(domain.ErrStore, "qdrant search", err)
	}

	out := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		out = append(out, domain.SearchResult{Payload: r.Payload, Score: r.Score})
	}
	return out, nil
}

func (c *Client) Count(ctx context.Context, collection string) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := c.do(ctx, "count", http.MethodPost, collectionPath(collection)+"/points/count", map[string]any{"exact": true}, &resp); err != nil {
		return 0, domain.WrapError(domain.ErrStore, "qdrant count", err)
	}
	return resp.Result.Count, nil
}

// DropCollection deletes the collection; a missing one is not an error.
func (c *Client) DropCollection(ctx context.Context, collection string) error {
	c.ensureMu.Lock()
	delete(c.ensured, collection)
	c.ensureMu.Unlock()

	err := c.do(ctx, "delete_collection", http.MethodDelete, collectionPath(collection), nil, nil)
	if err != nil && resilience.StatusCode(err) != http.StatusNotFound {
		return domain.WrapError(domain.ErrStore, "qdrant delete collection", err)
	}
	return nil
}

func collectionPath(collection string) string {
	return "/collections/" + url.PathEscape(collection)
}

func (c *Client) do(ctx context.Context, operation, method, path string, payload any, out any) error {
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", operation, err)
		}
		body = encoded
	}

	call := func(ctx context.Context) error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("api-key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return resilience.NewStatusError("qdrant", operation, resp)
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}

	if c.executor == nil {
		return call(ctx)
	}
	return c.executor.Execute(ctx, "qdrant."+operation, call, resilience.ClassifyHTTP)
}
