package ports

import (
	"context"

	"github.com/kirillkom/lore-assistant/internal/core/domain"
)

// CorpusSource yields page batches in sequence order until exhausted.
type CorpusSource interface {
	// Next returns the next batch. ok is false once the sequence ends.
	Next(ctx context.Context) (batch []domain.Page, name string, ok bool, err error)
}

// Normalizer turns raw wiki text into clean plain text.
type Normalizer interface {
	Normalize(raw string) string
}

// Chunker splits clean text into overlapping bounded chunks.
type Chunker interface {
	Split(text string) []string
}

// Embedder builds vectors for chunk and query text.
type Embedder interface {
	Embed(ctx context.Context, text string, mode domain.TaskMode) ([]float32, error)
	Dimension() int
}

// VectorStore indexes points and performs nearest-neighbor search.
type VectorStore interface {
	EnsureCollection(ctx context.Context, collection string, dimension int) error
	Upsert(ctx context.Context, collection string, point domain.Point) error
	Query(ctx context.Context, collection string, vector []float32, limit int) ([]domain.SearchResult, error)
	Count(ctx context.Context, collection string) (int, error)
	DropCollection(ctx context.Context, collection string) error
}

// LLM produces an answer for a system/user prompt pair.
type LLM interface {
	Name() string
	Answer(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Reauthenticator is implemented by providers whose credentials expire.
type Reauthenticator interface {
	Reauthenticate(ctx context.Context) error
}

// PromptRenderer builds the system prompt for a role.
type PromptRenderer interface {
	Render(question, context string, role domain.Role) (string, error)
}

// IngestJournal records ingestion runs and per-chunk failures.
type IngestJournal interface {
	StartRun(ctx context.Context, collection string) (runID string, err error)
	RecordSkip(ctx context.Context, runID string, page domain.Page, reason domain.SkipReason) error
	RecordFailure(ctx context.Context, runID string, failure domain.ChunkFailure) error
	FinishRun(ctx context.Context, runID string, report domain.IngestReport) error
}

// IngestObserver receives ingestion counters.
type IngestObserver interface {
	PageSkipped(reason domain.SkipReason)
	PageIndexed(chunks int)
	ChunkFailed(kind string)
}

// AnswerObserver receives answer outcome counters.
type AnswerObserver interface {
	AnswerFinished(provider string, outcome string, sources int)
	AuthRetry(provider string)
}
