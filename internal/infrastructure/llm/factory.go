// Package llm builds the configured answer provider.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kirillkom/lore-assistant/internal/config"
	"github.com/kirillkom/lore-assistant/internal/core/domain"
	"github.com/kirillkom/lore-assistant/internal/core/ports"
	"github.com/kirillkom/lore-assistant/internal/infrastructure/llm/deepseek"
	"github.com/kirillkom/lore-assistant/internal/infrastructure/llm/gigachat"
	"github.com/kirillkom/lore-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/lore-assistant/internal/infrastructure/resilience"
)

const (
	VariantLocal    = "local"
	VariantGigaChat = "gigachat"
	VariantDeepSeek = "deepseek"

	DefaultLocalModel = "llama3.1:8b"
)

var aliases = map[string]string{
	"local":           VariantLocal,
	"ollama":          VariantLocal,
	"gigachat":        VariantGigaChat,
	"gigachat-remote": VariantGigaChat,
	"deepseek":        VariantDeepSeek,
	"deepseek-remote": VariantDeepSeek,
}

// Variants lists accepted variant names, aliases included.
func Variants() []string {
	return []string{"local", "gigachat", "gigachat-remote", "deepseek", "deepseek-remote"}
}

func ResolveVariant(raw string) (string, error) {
	v, ok := aliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", domain.WrapError(domain.ErrConfiguration, "resolve llm variant", fmt.Errorf("unknown variant %q (known: %s)", raw, strings.Join(Variants(), ", ")))
	}
	return v, nil
}

type Deps struct {
	HTTPClient *http.Client
	Executor   *resilience.Executor
	Logger     *slog.Logger
}

// New constructs the provider for cfg.Variant. Missing credentials fail here
// rather than on the first answer.
func New(ctx context.Context, cfg config.LLMConfig, deps Deps) (ports.LLM, error) {
	variant, err := ResolveVariant(cfg.Variant)
	if err != nil {
		return nil, err
	}

	switch variant {
	case VariantLocal:
		model := cfg.Model
		if model == "" {
			model = DefaultLocalModel
		}
		client := ollama.New(cfg.OllamaURL, ollama.WithHTTPClient(deps.HTTPClient), ollama.WithExecutor(deps.Executor))
		return ollama.NewChatModel(client, model, cfg.Device), nil

	case VariantGigaChat:
		provider, err := gigachat.New(ctx, gigachat.Config{
			AuthURL:  cfg.SberAuthURL,
			APIURL:   cfg.GigaChatAPIURL,
			AuthKey:  cfg.SberAPIKey,
			Scope:    cfg.SberScope,
			Model:    cfg.Model,
			CABundle: cfg.GigaChatCA,
			Timeout:  cfg.Timeout,
		},
			gigachat.WithHTTPClient(deps.HTTPClient),
			gigachat.WithExecutor(deps.Executor),
			gigachat.WithLogger(deps.Logger),
		)
		if err != nil {
			return nil, err
		}
		return provider, nil

	default:
		provider, err := deepseek.New(deepseek.Config{
			APIKey:  cfg.DeepSeekAPIKey,
			BaseURL: cfg.DeepSeekAPIURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, deps.HTTPClient, deps.Executor)
		if err != nil {
			return nil, err
		}
		return provider, nil
	}
}
