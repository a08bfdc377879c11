package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/lore-assistant/internal/core/domain"
)

// PipelineMetrics counts ingestion and answering outcomes.
type PipelineMetrics struct {
	service string

	pagesSkipped  *prometheus.CounterVec
	pagesIndexed  *prometheus.CounterVec
	chunksIndexed *prometheus.CounterVec
	chunksFailed  *prometheus.CounterVec
	answersTotal  *prometheus.CounterVec
	answerSources *prometheus.HistogramVec
	authRetries   *prometheus.CounterVec
	breakerState  *prometheus.GaugeVec
}

func NewPipelineMetrics(registry prometheus.Registerer, service string) *PipelineMetrics {
	pagesSkipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "pages_skipped_total",
			Help:      "Pages rejected before chunking, by reason.",
		},
		[]string{"service", "reason"},
	)
	pagesIndexed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "pages_indexed_total",
			Help:      "Pages that reached the chunk indexing stage.",
		},
		[]string{"service"},
	)
	chunksIndexed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "chunks_indexed_total",
			Help:      "Chunks embedded and upserted.",
		},
		[]string{"service"},
	)
	chunksFailed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "chunks_failed_total",
			Help:      "Chunks that failed to embed or upsert, by stage.",
		},
		[]string{"service", "stage"},
	)
	answersTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "answer",
			Name:      "requests_total",
			Help:      "Answer requests by provider and outcome.",
		},
		[]string{"service", "provider", "outcome"},
	)
	answerSources := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "answer",
			Name:      "sources",
			Help:      "Retrieved passages per answer request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service"},
	)
	authRetries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "answer",
			Name:      "auth_retries_total",
			Help:      "Answer calls retried after an expired authorization.",
		},
		[]string{"service", "provider"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per operation: 0 closed, 1 half-open, 2 open.",
		},
		[]string{"service", "operation"},
	)
	registry.MustRegister(pagesSkipped, pagesIndexed, chunksIndexed, chunksFailed, answersTotal, answerSources, authRetries, breakerState)

	return &PipelineMetrics{
		service:       service,
		pagesSkipped:  pagesSkipped,
		pagesIndexed:  pagesIndexed,
		chunksIndexed: chunksIndexed,
		chunksFailed:  chunksFailed,
		answersTotal:  answersTotal,
		answerSources: answerSources,
		authRetries:   authRetries,
		breakerState:  breakerState,
	}
}

func (m *PipelineMetrics) PageSkipped(reason domain.SkipReason) {
	m.pagesSkipped.WithLabelValues(m.service, string(reason)).Inc()
}

func (m *PipelineMetrics) PageIndexed(chunks int) {
	m.pagesIndexed.WithLabelValues(m.service).Inc()
	if chunks > 0 {
		m.chunksIndexed.WithLabelValues(m.service).Add(float64(chunks))
	}
}

func (m *PipelineMetrics) ChunkFailed(stage string) {
	if stage == "" {
		stage = "unknown"
	}
	m.chunksFailed.WithLabelValues(m.service, stage).Inc()
}

func (m *PipelineMetrics) AnswerFinished(provider, outcome string, sources int) {
	m.answersTotal.WithLabelValues(m.service, provider, outcome).Inc()
	m.answerSources.WithLabelValues(m.service).Observe(float64(sources))
}

func (m *PipelineMetrics) AuthRetry(provider string) {
	m.authRetries.WithLabelValues(m.service, provider).Inc()
}

// BreakerStateChanged matches resilience.StateListener.
func (m *PipelineMetrics) BreakerStateChanged(operation string, _, to gobreaker.State) {
	var value float64
	switch to {
	case gobreaker.StateHalfOpen:
		value = 1
	case gobreaker.StateOpen:
		value = 2
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}
