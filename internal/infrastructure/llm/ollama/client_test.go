package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/lore-assistant/internal/core/domain"
	"github.com/kirillkom/lore-assistant/internal/infrastructure/resilience"
)

func TestEmbedderPrefixesTaskMode(t *testing.T) {
	var captured []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		var payload struct {
			Model string `json:"model"`
			Input string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		captured = append(captured, payload.Input)
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL), "bge-m3", 3)
	if _, err := embedder.Embed(context.Background(), "монолит", domain.TaskQuery); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if _, err := embedder.Embed(context.Background(), "зона", ""); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if captured[0] != "search_query: монолит" || captured[1] != "search_document: зона" {
		t.Fatalf("unexpected inputs: %q", captured)
	}
	if embedder.Dimension() != 3 {
		t.Fatalf("unexpected dimension %d", embedder.Dimension())
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL), "embed", 3)
	_, err := embedder.Embed(context.Background(), "hello", domain.TaskDocument)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrEmbedding) {
		t.Fatalf("expected embedding kind, got %v", err)
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestEmbedRetriesThroughExecutor(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"embeddings":[[1]]}`))
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
	})
	embedder := NewEmbedder(New(server.URL, WithExecutor(exec)), "embed", 1)
	if _, err := embedder.Embed(context.Background(), "x", domain.TaskDocument); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestChatModelSendsMessagesAndDevice(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"  Монолит охраняет центр зоны. "}}`))
	}))
	defer server.Close()

	model := NewChatModel(New(server.URL), "llama3.1:8b", "CPU")
	answer, err := model.Answer(context.Background(), "system text", "кто такие монолит?")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer != "Монолит охраняет центр зоны." {
		t.Fatalf("unexpected answer %q", answer)
	}
	messages, _ := payload["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %v", payload["messages"])
	}
	options, _ := payload["options"].(map[string]any)
	if options["num_gpu"] != float64(0) {
		t.Fatalf("expected num_gpu=0 for cpu, got %v", payload["options"])
	}
	if model.Name() != "local:llama3.1:8b" {
		t.Fatalf("unexpected name %q", model.Name())
	}
}

func TestChatModelWrapsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewChatModel(New(server.URL), "missing", "gpu").Answer(context.Background(), "s", "u")
	if !domain.IsKind(err, domain.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestChatModelRejectsEmptyCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"  \n"}}`))
	}))
	defer server.Close()

	text, err := NewChatModel(New(server.URL), "llama3.1:8b", "auto").Answer(context.Background(), "s", "u")
	if !domain.IsKind(err, domain.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if text != "" {
		t.Fatalf("expected no text, got %q", text)
	}
}
