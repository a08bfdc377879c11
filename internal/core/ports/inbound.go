package ports

import (
	"context"

	"github.com/kirillkom/lore-assistant/internal/core/domain"
)

// Ingestor is the inbound contract for offline corpus indexing.
type Ingestor interface {
	Ingest(ctx context.Context, pages []domain.Page) (domain.IngestReport, error)
	IngestCorpus(ctx context.Context, source CorpusSource) (domain.IngestReport, error)
}

// Searcher is the inbound contract for top-k semantic retrieval.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error)
}

// Answerer is the inbound contract for retrieval-augmented answering.
type Answerer interface {
	GenerateAnswer(ctx context.Context, question string, role domain.Role) domain.Answer
}
