package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/lore-assistant/internal/core/domain"
)

func TestPipelineMetricsCounters(t *testing.T) {
	registry := NewRegistry()
	m := NewPipelineMetrics(registry, "lore")

	m.PageSkipped(domain.SkipRedirect)
	m.PageSkipped(domain.SkipRedirect)
	m.PageIndexed(3)
	m.ChunkFailed("embedding")
	m.AnswerFinished("gigachat:GigaChat", "auth_retried", 5)
	m.AuthRetry("gigachat:GigaChat")
	m.BreakerStateChanged("qdrant.search", gobreaker.StateClosed, gobreaker.StateOpen)

	if got := testutil.ToFloat64(m.pagesSkipped.WithLabelValues("lore", "redirect")); got != 2 {
		t.Fatalf("expected 2 skipped pages, got %v", got)
	}
	if got := testutil.ToFloat64(m.chunksIndexed.WithLabelValues("lore")); got != 3 {
		t.Fatalf("expected 3 indexed chunks, got %v", got)
	}
	if got := testutil.ToFloat64(m.authRetries.WithLabelValues("lore", "gigachat:GigaChat")); got != 1 {
		t.Fatalf("expected 1 auth retry, got %v", got)
	}
	if got := testutil.ToFloat64(m.breakerState.WithLabelValues("lore", "qdrant.search")); got != 2 {
		t.Fatalf("expected open breaker state 2, got %v", got)
	}
}

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	registry := NewRegistry()
	httpMetrics := NewHTTPServerMetrics(registry, "lore")
	pipeline := NewPipelineMetrics(registry, "lore")
	pipeline.AnswerFinished("local:llama3.1:8b", "success", 2)

	handler := httpMetrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	httpMetrics.RecordRejected("rate_limited")

	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`lore_http_requests_total{method="GET",path="/healthz",service="lore",status="418"} 1`,
		`lore_http_rejected_total{reason="rate_limited",service="lore"} 1`,
		`lore_answer_requests_total{outcome="success",provider="local:llama3.1:8b",service="lore"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
