package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kirillkom/lore-assistant/internal/config"
	"github.com/kirillkom/lore-assistant/internal/core/domain"
	"github.com/kirillkom/lore-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/lore-assistant/internal/infrastructure/vector/memory"
)

var vocabulary = []string{"монолит", "бар", "стрелок", "зона", "артефакт", "выброс", "долг", "свобода"}

// keywordVector maps text to a bag-of-keywords vector with a constant bias
// component so that no vector is zero.
func keywordVector(text string) []float32 {
	text = strings.ToLower(text)
	vec := make([]float32, len(vocabulary)+1)
	vec[0] = 0.1
	for i, word := range vocabulary {
		if strings.Contains(text, word) {
			vec[i+1] = 1
		}
	}
	return vec
}

type fakeOllama struct {
	mu           sync.Mutex
	systemPrompt string
	embedInputs  []string
}

func (f *fakeOllama) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode embed request: %v", err)
		}
		f.mu.Lock()
		f.embedInputs = append(f.embedInputs, req.Input)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{keywordVector(req.Input)}})
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode chat request: %v", err)
		}
		f.mu.Lock()
		if len(req.Messages) > 0 {
			f.systemPrompt = req.Messages[0].Content
		}
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": " Монолит исполняет желания. "},
		})
	})
	return mux
}

func testConfig(ollamaURL string) config.Config {
	return config.Config{
		DataPath:         "./data",
		QdrantCollection: "wiki_articles",
		VectorStore:      "memory",
		VectorSize:       len(vocabulary) + 1,
		MinPageLength:    25,
		ChunkSize:        500,
		ChunkOverlap:     75,
		RAGTopK:          1,
		EmbedProvider:    "ollama",
		OllamaURL:        ollamaURL,
		OllamaEmbedModel: "bge-m3",
		LLM: config.LLMConfig{
			Variant:   "local",
			Model:     "llama3.1:8b",
			OllamaURL: ollamaURL,
		},
		Resilience: resilience.Config{RetryMaxAttempts: 1},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIngestThenAnswerEndToEnd(t *testing.T) {
	fake := &fakeOllama{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	ctx := context.Background()
	store := memory.New()
	app, err := New(ctx, testConfig(srv.URL), discardLogger(), WithVectorStore(store))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer app.Close()

	report, err := app.IngestUC.Ingest(ctx, []domain.Page{
		{ID: "1", Title: "Монолит", Text: "Монолит — легендарный артефакт в центре Зоны, исполняющий желания."},
		{ID: "2", Title: "100 рентген", Text: "Бар «100 рентген» принадлежит Бармену и служит местом встречи сталкеров."},
		{ID: "3", Title: "Категория:Локации", Text: "Служебная страница со списком локаций Зоны отчуждения."},
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if report.PagesIndexed != 2 || report.PagesSkipped != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	points := store.Points("wiki_articles")
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].Payload.Metadata.WikiID != "1" || points[0].Payload.Metadata.Chunk != 0 {
		t.Fatalf("unexpected first point metadata: %+v", points[0].Payload.Metadata)
	}
	if len(points[0].Vector) != app.Config.VectorSize {
		t.Fatalf("expected vector of size %d, got %d", app.Config.VectorSize, len(points[0].Vector))
	}

	answerer, err := app.NewAnswerer(ctx, app.Config.LLM)
	if err != nil {
		t.Fatalf("new answerer: %v", err)
	}
	answer := answerer.GenerateAnswer(ctx, "Что такое Монолит?", domain.RoleDefault)
	if answer.Degraded {
		t.Fatalf("unexpected degraded answer: %s", answer.Reason)
	}
	if answer.Text != "Монолит исполняет желания." {
		t.Fatalf("unexpected answer text %q", answer.Text)
	}
	if len(answer.Sources) != 1 || answer.Sources[0].Payload.Metadata.Title != "Монолит" {
		t.Fatalf("expected the monolith page as the only source, got %+v", answer.Sources)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if !strings.Contains(fake.systemPrompt, "легендарный артефакт") {
		t.Fatalf("system prompt does not carry retrieved context: %q", fake.systemPrompt)
	}
	last := fake.embedInputs[len(fake.embedInputs)-1]
	if !strings.HasPrefix(last, string(domain.TaskQuery)+": ") {
		t.Fatalf("expected query embedding prefix, got %q", last)
	}
}

func TestResetCollectionEmptiesIndex(t *testing.T) {
	fake := &fakeOllama{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	ctx := context.Background()
	app, err := New(ctx, testConfig(srv.URL), discardLogger())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if _, err := app.IngestUC.Ingest(ctx, []domain.Page{
		{ID: "1", Title: "Монолит", Text: "Монолит — легендарный артефакт в центре Зоны."},
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := app.ResetCollection(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	count, err := app.Store.Count(ctx, "wiki_articles")
	if err != nil || count != 0 {
		t.Fatalf("expected empty index after reset, got %d (err=%v)", count, err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.ChunkOverlap = cfg.ChunkSize

	_, err := New(context.Background(), cfg, discardLogger())
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewAnswererRejectsMissingCredentials(t *testing.T) {
	app, err := New(context.Background(), testConfig("http://127.0.0.1:1"), discardLogger())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	llmCfg := app.Config.LLM
	llmCfg.Variant = "deepseek"
	if _, err := app.NewAnswerer(context.Background(), llmCfg); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing key, got %v", err)
	}

	llmCfg.Variant = "mistral"
	if _, err := app.NewAnswerer(context.Background(), llmCfg); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error for unknown variant, got %v", err)
	}
}

func TestReadyPingsOllama(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/version", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"version": "0.5.0"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	app, err := New(context.Background(), testConfig(srv.URL), discardLogger())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if err := app.Ready(context.Background()); err != nil {
		t.Fatalf("expected ready, got %v", err)
	}

	srv.Close()
	if err := app.Ready(context.Background()); err == nil {
		t.Fatalf("expected error once the server is gone")
	}
}
