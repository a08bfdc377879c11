package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/lore-assistant/internal/config"
	"github.com/kirillkom/lore-assistant/internal/core/domain"
	"github.com/kirillkom/lore-assistant/internal/core/ports"
	"github.com/kirillkom/lore-assistant/internal/observability/metrics"
)

const (
	maxBodyBytes       = 64 << 10
	backpressureWait   = 250 * time.Millisecond
	defaultMaxInFlight = 8
)

type Router struct {
	cfg      config.Config
	searcher ports.Searcher
	answerer ports.Answerer
	logger   *slog.Logger

	httpMetrics    *metrics.HTTPServerMetrics
	metricsHandler http.Handler
	ready          func(context.Context) error
}

type RouterOption func(*Router)

func WithLogger(logger *slog.Logger) RouterOption {
	return func(rt *Router) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

func WithMetrics(httpMetrics *metrics.HTTPServerMetrics, handler http.Handler) RouterOption {
	return func(rt *Router) {
		rt.httpMetrics = httpMetrics
		rt.metricsHandler = handler
	}
}

// WithReadiness sets the check behind /readyz.
func WithReadiness(check func(context.Context) error) RouterOption {
	return func(rt *Router) {
		rt.ready = check
	}
}

func NewRouter(cfg config.Config, searcher ports.Searcher, answerer ports.Answerer, opts ...RouterOption) *Router {
	rt := &Router{
		cfg:      cfg,
		searcher: searcher,
		answerer: answerer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Handler wires routes and middleware. Only /v1 endpoints are rate limited.
func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/v1/search", rt.search)
	api.HandleFunc("/v1/answer", rt.answer)

	maxInFlight := rt.cfg.APIMaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}
	var limited http.Handler = api
	limited = backpressureMiddleware(limited, maxInFlight, backpressureWait, rt.onReject)
	limited = rateLimitMiddleware(limited, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.onReject)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/readyz", rt.readyz)
	if rt.metricsHandler != nil {
		mux.Handle("/metrics", rt.metricsHandler)
	}
	mux.Handle("/v1/", limited)

	var handler http.Handler = mux
	if rt.httpMetrics != nil {
		handler = rt.httpMetrics.Middleware(handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) onReject(reason string) {
	if rt.httpMetrics != nil {
		rt.httpMetrics.RecordRejected(reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) readyz(w http.ResponseWriter, r *http.Request) {
	if rt.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := rt.ready(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type searchRequest struct {
	Query string `json:"query" validate:"required,max=2000"`
	TopK  int    `json:"top_k" validate:"gte=0,lte=100"`
}

type searchHit struct {
	WikiID  string  `json:"wiki_id"`
	Title   string  `json:"title"`
	Chunk   int     `json:"chunk"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if err := validateRequest(req); err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err)
		return
	}
	if req.TopK == 0 {
		req.TopK = rt.cfg.RAGTopK
	}

	results, err := rt.searcher.Search(r.Context(), req.Query, req.TopK)
	if err != nil {
		rt.logger.Warn("search_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		writeError(w, mapErrorToHTTPStatus(err), err)
		return
	}

	hits := make([]searchHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, searchHit{
			WikiID:  res.Payload.Metadata.WikiID.String(),
			Title:   res.Payload.Metadata.Title,
			Chunk:   res.Payload.Metadata.Chunk,
			Content: res.Payload.Content,
			Score:   res.Score,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": req.Query, "results": hits})
}

type answerRequest struct {
	Question string `json:"question" validate:"required,max=4000"`
	Role     string `json:"role"`
}

// answer always returns 200 once input is valid; a failed generation shows up
// as degraded=true with an empty answer.
func (rt *Router) answer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if err := validateRequest(req); err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err)
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err)
		return
	}

	writeJSON(w, http.StatusOK, rt.answerer.GenerateAnswer(r.Context(), req.Question, role))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return errors.New("invalid json")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
