// Package deepseek is the hosted answer provider authenticated with a static
// API key.
package deepseek

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/lore-assistant/internal/core/domain"
	"github.com/kirillkom/lore-assistant/internal/infrastructure/llm/chatapi"
	"github.com/kirillkom/lore-assistant/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL = "https://api.deepseek.com"
	DefaultModel   = "deepseek-chat"
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Provider struct {
	apiKey string
	model  string
	chat   *chatapi.Client
}

func New(cfg Config, httpClient *http.Client, executor *resilience.Executor) (*Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "deepseek", errors.New("api key is required"))
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if httpClient == nil && cfg.Timeout > 0 {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	endpoint := strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions"
	return &Provider{
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		chat:   chatapi.NewClient("deepseek", endpoint, httpClient, executor),
	}, nil
}

func (p *Provider) Name() string {
	return "deepseek:" + p.model
}

// Answer never reports ErrAuthExpired: a static key that is rejected stays
// rejected, so a retry would not help.
func (p *Provider) Answer(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	text, err := p.chat.Complete(ctx, p.apiKey, p.model, systemPrompt, userPrompt)
	if err != nil {
		return "", domain.WrapError(domain.ErrProvider, "deepseek answer", err)
	}
	return text, nil
}
