package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillkom/lore-assistant/internal/core/domain"
	"github.com/kirillkom/lore-assistant/internal/infrastructure/resilience"
)

type Config struct {
	APIPort  string
	LogLevel string

	DataPath string

	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string
	VectorStore      string
	VectorSize       int

	MinPageLength int
	ChunkSize     int
	ChunkOverlap  int

	RAGTopK          int
	RAGIncludeTitles bool

	EmbedProvider    string
	OllamaURL        string
	OllamaEmbedModel string

	LLM LLMConfig

	PromptRolesFile  string
	IngestJournalDSN string

	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxInFlight    int

	Resilience resilience.Config
}

// LLMConfig selects the answer provider and carries the credential material
// of every variant; only the selected variant's fields are required.
type LLMConfig struct {
	Variant string
	Model   string
	Device  string

	OllamaURL string

	SberScope      string
	SberAPIKey     string
	SberAuthURL    string
	GigaChatAPIURL string
	GigaChatCA     string

	DeepSeekAPIKey string
	DeepSeekAPIURL string

	Timeout time.Duration
}

// Load reads .env when present, then the environment.
func Load() Config {
	_ = godotenv.Load(".env")

	ollamaURL := mustEnv("OLLAMA_URL", "http://localhost:11434")
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		DataPath: mustEnv("DATA_PATH", "./data"),

		QdrantURL:        mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:     mustEnv("QDRANT_API_KEY", ""),
		QdrantCollection: mustEnv("QDRANT_COLLECTION", "wiki_articles"),
		VectorStore:      mustEnv("VECTOR_STORE", "qdrant"),
		VectorSize:       mustEnvInt("VECTOR_SIZE", 1024),

		MinPageLength: mustEnvInt("MIN_PAGE_LENGTH", 25),
		ChunkSize:     mustEnvInt("CHUNK_SIZE", 500),
		ChunkOverlap:  mustEnvInt("CHUNK_OVERLAP", 75),

		RAGTopK:          mustEnvInt("RAG_TOP_K", 5),
		RAGIncludeTitles: mustEnvBool("RAG_INCLUDE_TITLES", false),

		EmbedProvider:    mustEnv("EMBED_PROVIDER", "ollama"),
		OllamaURL:        ollamaURL,
		OllamaEmbedModel: mustEnv("OLLAMA_EMBED_MODEL", "bge-m3"),

		LLM: LLMConfig{
			Variant: mustEnv("LLM_VARIANT", "local"),
			Model:   mustEnv("LLM_MODEL", ""),
			Device:  mustEnv("LLM_DEVICE", "auto"),

			OllamaURL: ollamaURL,

			SberScope:      mustEnv("SBER_SCOPE", ""),
			SberAPIKey:     mustEnv("SBER_API_KEY", ""),
			SberAuthURL:    mustEnv("SBER_AUTH_URL", "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"),
			GigaChatAPIURL: mustEnv("GIGACHAT_API_URL", "https://gigachat.devices.sberbank.ru/api/v1/chat/completions"),
			GigaChatCA:     mustEnv("GIGACHAT_CA_BUNDLE", ""),

			DeepSeekAPIKey: mustEnv("DEEPSEEK_API_KEY", ""),
			DeepSeekAPIURL: mustEnv("DEEPSEEK_API_URL", "https://api.deepseek.com"),

			Timeout: time.Duration(mustEnvInt("LLM_TIMEOUT_SECONDS", 120)) * time.Second,
		},

		PromptRolesFile:  mustEnv("PROMPT_ROLES_FILE", ""),
		IngestJournalDSN: mustEnv("INGEST_JOURNAL_DSN", ""),

		APIRateLimitRPS:   mustEnvFloat("API_RATE_LIMIT_RPS", 5),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 10),
		APIMaxInFlight:    mustEnvInt("API_MAX_IN_FLIGHT", 8),

		Resilience: resilience.Config{
			RetryMaxAttempts:        mustEnvInt("RESILIENCE_RETRY_MAX_ATTEMPTS", 3),
			RetryInitialBackoff:     time.Duration(mustEnvInt("RESILIENCE_RETRY_INITIAL_BACKOFF_MS", 100)) * time.Millisecond,
			RetryMaxBackoff:         time.Duration(mustEnvInt("RESILIENCE_RETRY_MAX_BACKOFF_MS", 400)) * time.Millisecond,
			RetryMultiplier:         mustEnvFloat("RESILIENCE_RETRY_MULTIPLIER", 2),
			BreakerEnabled:          mustEnvBool("RESILIENCE_BREAKER_ENABLED", true),
			BreakerMinRequests:      uint32(max(0, mustEnvInt("RESILIENCE_BREAKER_MIN_REQUESTS", 5))),
			BreakerFailureRatio:     mustEnvFloat("RESILIENCE_BREAKER_FAILURE_RATIO", 0.5),
			BreakerOpenTimeout:      time.Duration(mustEnvInt("RESILIENCE_BREAKER_OPEN_TIMEOUT_MS", 30000)) * time.Millisecond,
			BreakerHalfOpenMaxCalls: uint32(max(0, mustEnvInt("RESILIENCE_BREAKER_HALF_OPEN_MAX_CALLS", 2))),
		},
	}
}

// Validate rejects settings that would fail later in the pipeline.
func (c Config) Validate() error {
	var errs []error
	if c.VectorSize <= 0 {
		errs = append(errs, fmt.Errorf("VECTOR_SIZE must be positive, got %d", c.VectorSize))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize))
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap))
	}
	if c.MinPageLength < 0 {
		errs = append(errs, fmt.Errorf("MIN_PAGE_LENGTH must not be negative, got %d", c.MinPageLength))
	}
	if c.RAGTopK <= 0 {
		errs = append(errs, fmt.Errorf("RAG_TOP_K must be positive, got %d", c.RAGTopK))
	}
	if strings.TrimSpace(c.QdrantCollection) == "" {
		errs = append(errs, errors.New("QDRANT_COLLECTION is required"))
	}
	switch c.VectorStore {
	case "qdrant", "memory":
	default:
		errs = append(errs, fmt.Errorf("VECTOR_STORE must be qdrant or memory, got %q", c.VectorStore))
	}
	if c.EmbedProvider != "ollama" {
		errs = append(errs, fmt.Errorf("EMBED_PROVIDER %q is not supported", c.EmbedProvider))
	}
	if len(errs) == 0 {
		return nil
	}
	return domain.WrapError(domain.ErrConfiguration, "validate config", errors.Join(errs...))
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
