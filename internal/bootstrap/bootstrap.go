package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/lore-assistant/internal/config"
	"github.com/kirillkom/lore-assistant/internal/core/ports"
	"github.com/kirillkom/lore-assistant/internal/core/usecase"
	"github.com/kirillkom/lore-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/lore-assistant/internal/infrastructure/llm"
	"github.com/kirillkom/lore-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/lore-assistant/internal/infrastructure/normalize"
	"github.com/kirillkom/lore-assistant/internal/infrastructure/prompt"
	"github.com/kirillkom/lore-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/lore-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/lore-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/lore-assistant/internal/infrastructure/vector/memory"
	"github.com/kirillkom/lore-assistant/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/lore-assistant/internal/observability/metrics"
)

// App holds the wired components shared by every command. The answer
// provider is not built here because only the answer paths need credentials.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Pipeline *metrics.PipelineMetrics
	Executor *resilience.Executor

	Store    ports.VectorStore
	Embedder ports.Embedder
	Renderer *prompt.Renderer
	Journal  *postgres.JournalRepository

	IngestUC *usecase.IngestUseCase
	SearchUC *usecase.SearchUseCase

	ollama     *ollama.Client
	httpClient *http.Client
	closeFn    func()
}

type Option func(*options)

type options struct {
	httpClient *http.Client
	store      ports.VectorStore
}

// WithHTTPClient replaces the client used for every outbound HTTP call.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithVectorStore bypasses VECTOR_STORE selection.
func WithVectorStore(store ports.VectorStore) Option {
	return func(o *options) { o.store = store }
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = slog.Default()
	}

	registry := metrics.NewRegistry()
	pipeline := metrics.NewPipelineMetrics(registry, "lore")
	executor := resilience.NewExecutor(cfg.Resilience,
		resilience.WithLogger(logger),
		resilience.WithStateListener(pipeline.BreakerStateChanged),
	)

	store := o.store
	if store == nil {
		store = newVectorStore(cfg, o.httpClient, executor)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, ollama.WithHTTPClient(o.httpClient), ollama.WithExecutor(executor))
	embedder := ollama.NewEmbedder(ollamaClient, cfg.OllamaEmbedModel, cfg.VectorSize)

	splitter, err := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	renderer, err := prompt.New(cfg.PromptRolesFile)
	if err != nil {
		return nil, err
	}

	var (
		db      *sql.DB
		journal *postgres.JournalRepository
	)
	ingestOpts := []usecase.IngestOption{
		usecase.WithIngestObserver(pipeline),
		usecase.WithIngestLogger(logger),
	}
	if dsn := strings.TrimSpace(cfg.IngestJournalDSN); dsn != "" {
		db, err = postgres.OpenDB(dsn)
		if err != nil {
			return nil, fmt.Errorf("open ingest journal: %w", err)
		}
		journal = postgres.NewJournalRepository(db)
		if err := journal.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure journal schema: %w", err)
		}
		ingestOpts = append(ingestOpts, usecase.WithIngestJournal(journal))
	}

	ingestUC := usecase.NewIngestUseCase(
		normalize.New(),
		splitter,
		embedder,
		store,
		usecase.IngestOptions{
			Collection:    cfg.QdrantCollection,
			Dimension:     cfg.VectorSize,
			MinPageLength: cfg.MinPageLength,
		},
		ingestOpts...,
	)
	searchUC := usecase.NewSearchUseCase(embedder, store, cfg.QdrantCollection, cfg.VectorSize)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		Pipeline: pipeline,
		Executor: executor,

		Store:    store,
		Embedder: embedder,
		Renderer: renderer,
		Journal:  journal,

		IngestUC: ingestUC,
		SearchUC: searchUC,

		ollama:     ollamaClient,
		httpClient: o.httpClient,
		closeFn: func() {
			if db != nil {
				_ = db.Close()
			}
		},
	}, nil
}

func newVectorStore(cfg config.Config, httpClient *http.Client, executor *resilience.Executor) ports.VectorStore {
	if cfg.VectorStore == "memory" {
		return memory.New()
	}
	return qdrant.New(cfg.QdrantURL,
		qdrant.WithAPIKey(cfg.QdrantAPIKey),
		qdrant.WithHTTPClient(httpClient),
		qdrant.WithExecutor(executor),
	)
}

// NewAnswerer builds the provider selected by llmCfg and the orchestrator
// around it. Provider construction errors are returned as is.
func (a *App) NewAnswerer(ctx context.Context, llmCfg config.LLMConfig) (*usecase.AnswerUseCase, error) {
	model, err := llm.New(ctx, llmCfg, llm.Deps{
		HTTPClient: a.httpClient,
		Executor:   a.Executor,
		Logger:     a.Logger,
	})
	if err != nil {
		return nil, err
	}
	a.Logger.Info("llm_provider_ready", "provider", model.Name())
	return usecase.NewAnswerUseCase(
		a.SearchUC,
		a.Renderer,
		model,
		usecase.AnswerOptions{
			TopK:          a.Config.RAGTopK,
			IncludeTitles: a.Config.RAGIncludeTitles,
		},
		a.Pipeline,
		a.Logger,
	), nil
}

// Ready reports whether the embedding server answers.
func (a *App) Ready(ctx context.Context) error {
	return a.ollama.Ping(ctx)
}

func (a *App) Corpus() (*localfs.Corpus, error) {
	return localfs.NewCorpus(a.Config.DataPath)
}

// ResetCollection drops the configured collection so the next ingest starts
// from an empty index.
func (a *App) ResetCollection(ctx context.Context) error {
	return a.Store.DropCollection(ctx, a.Config.QdrantCollection)
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
