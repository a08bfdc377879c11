// Package gigachat is the hosted answer provider authenticated with short-lived
// bearer tokens minted from a long-lived authorization key.
package gigachat

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/lore-assistant/internal/core/domain"
	"github.com/kirillkom/lore-assistant/internal/infrastructure/llm/chatapi"
	"github.com/kirillkom/lore-assistant/internal/infrastructure/resilience"
)

const (
	DefaultAuthURL = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"
	DefaultAPIURL  = "https://gigachat.devices.sberbank.ru/api/v1/chat/completions"
	DefaultModel   = "GigaChat"
)

type Config struct {
	AuthURL  string
	APIURL   string
	AuthKey  string
	Scope    string
	Model    string
	CABundle string
	Timeout  time.Duration
}

type Option func(*Provider)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(p *Provider) {
		if httpClient != nil {
			p.httpClient = httpClient
		}
	}
}

func WithExecutor(executor *resilience.Executor) Option {
	return func(p *Provider) {
		p.executor = executor
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

type token struct {
	value     string
	expiresAt time.Time
}

type Provider struct {
	cfg        Config
	httpClient *http.Client
	executor   *resilience.Executor
	logger     *slog.Logger
	now        func() time.Time
	chat       *chatapi.Client

	mu    sync.Mutex
	token *token // nil while unauthenticated
}

// New validates credentials and mints the first token.
func New(ctx context.Context, cfg Config, opts ...Option) (*Provider, error) {
	if strings.TrimSpace(cfg.AuthKey) == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "gigachat", errors.New("authorization key is required"))
	}
	if strings.TrimSpace(cfg.Scope) == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "gigachat", errors.New("scope is required"))
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	p := &Provider{
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.httpClient == nil {
		httpClient, err := newHTTPClient(cfg.CABundle, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		p.httpClient = httpClient
	}
	p.chat = chatapi.NewClient("gigachat", cfg.APIURL, p.httpClient, p.executor)

	if err := p.Reauthenticate(ctx); err != nil {
		if code := resilience.StatusCode(err); code == http.StatusBadRequest || code == http.StatusUnauthorized {
			return nil, domain.WrapError(domain.ErrConfiguration, "gigachat mint token", err)
		}
		return nil, err
	}
	return p, nil
}

func newHTTPClient(caBundle string, timeout time.Duration) (*http.Client, error) {
	if strings.TrimSpace(caBundle) == "" {
		return &http.Client{Timeout: timeout}, nil
	}
	pem, err := os.ReadFile(caBundle)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "gigachat ca bundle", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, domain.WrapError(domain.ErrConfiguration, "gigachat ca bundle", fmt.Errorf("no certificates in %s", caBundle))
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	return &http.Client{Timeout: timeout, Transport: transport}, nil
}

func (p *Provider) Name() string {
	return "gigachat:" + p.cfg.Model
}

// Authenticated reports whether a usable token is held.
func (p *Provider) Authenticated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.usableLocked() != nil
}

func (p *Provider) usableLocked() *token {
	if p.token == nil {
		return nil
	}
	if !p.token.expiresAt.IsZero() && !p.now().Before(p.token.expiresAt) {
		p.token = nil
		return nil
	}
	return p.token
}

// Answer fails with ErrAuthExpired without calling the API once the held
// token is known to be dead; only Reauthenticate brings it back.
func (p *Provider) Answer(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	p.mu.Lock()
	current := p.usableLocked()
	p.mu.Unlock()
	if current == nil {
		return "", domain.WrapError(domain.ErrAuthExpired, "gigachat answer", errors.New("no valid token"))
	}

	text, err := p.chat.Complete(ctx, current.value, p.cfg.Model, systemPrompt, userPrompt)
	if err == nil {
		return text, nil
	}
	if resilience.StatusCode(err) == http.StatusUnauthorized {
		p.mu.Lock()
		if p.token == current {
			p.token = nil
		}
		p.mu.Unlock()
		p.logger.Warn("gigachat_token_rejected", "model", p.cfg.Model)
		return "", domain.WrapError(domain.ErrAuthExpired, "gigachat answer", err)
	}
	return "", domain.WrapError(domain.ErrProvider, "gigachat answer", err)
}

// Reauthenticate mints a fresh bearer token and replaces the held one.
func (p *Provider) Reauthenticate(ctx context.Context) error {
	minted, err := resilience.Call(ctx, p.executor, "gigachat.oauth", p.mint, resilience.ClassifyHTTP)
	if err != nil {
		return domain.WrapError(domain.ErrProvider, "gigachat mint token", err)
	}
	p.mu.Lock()
	p.token = minted
	p.mu.Unlock()
	p.logger.Info("gigachat_token_minted", "expires_at", minted.expiresAt)
	return nil
}

func (p *Provider) mint(ctx context.Context) (*token, error) {
	form := url.Values{"scope": {p.cfg.Scope}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create oauth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", uuid.NewString())
	req.Header.Set("Authorization", "Basic "+p.cfg.AuthKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gigachat oauth request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, resilience.NewStatusError("gigachat", "oauth", resp)
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresAt   int64  `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode oauth response: %w", err)
	}
	if out.AccessToken == "" {
		return nil, errors.New("oauth response has no access token")
	}
	minted := &token{value: out.AccessToken}
	if out.ExpiresAt > 0 {
		minted.expiresAt = time.UnixMilli(out.ExpiresAt)
	}
	return minted, nil
}
