package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kirillkom/lore-assistant/internal/core/domain"
	"github.com/kirillkom/lore-assistant/internal/core/ports"
)

type IngestOptions struct {
	Collection    string
	Dimension     int
	MinPageLength int
}

type IngestOption func(*IngestUseCase)

func WithIngestJournal(journal ports.IngestJournal) IngestOption {
	return func(uc *IngestUseCase) { uc.journal = journal }
}

func WithIngestObserver(observer ports.IngestObserver) IngestOption {
	return func(uc *IngestUseCase) { uc.observer = observer }
}

func WithIngestLogger(logger *slog.Logger) IngestOption {
	return func(uc *IngestUseCase) {
		if logger != nil {
			uc.logger = logger
		}
	}
}

// IngestUseCase drives normalize -> chunk -> embed -> upsert for page batches.
// Failures of a single chunk are recorded and skipped; only configuration
// problems and cancellation abort the run.
type IngestUseCase struct {
	normalizer ports.Normalizer
	chunker    ports.Chunker
	embedder   ports.Embedder
	store      ports.VectorStore
	journal    ports.IngestJournal
	observer   ports.IngestObserver
	opts       IngestOptions
	logger     *slog.Logger
}

func NewIngestUseCase(
	normalizer ports.Normalizer,
	chunker ports.Chunker,
	embedder ports.Embedder,
	store ports.VectorStore,
	opts IngestOptions,
	options ...IngestOption,
) *IngestUseCase {
	if opts.MinPageLength <= 0 {
		opts.MinPageLength = DefaultMinPageLength
	}
	uc := &IngestUseCase{
		normalizer: normalizer,
		chunker:    chunker,
		embedder:   embedder,
		store:      store,
		opts:       opts,
		logger:     slog.Default(),
	}
	for _, opt := range options {
		opt(uc)
	}
	return uc
}

func (uc *IngestUseCase) Ingest(ctx context.Context, pages []domain.Page) (domain.IngestReport, error) {
	runID, err := uc.begin(ctx)
	if err != nil {
		return domain.IngestReport{}, err
	}
	report, err := uc.ingestBatch(ctx, runID, pages)
	report.Batches = 1
	uc.finish(ctx, runID, report)
	return report, err
}

func (uc *IngestUseCase) IngestCorpus(ctx context.Context, source ports.CorpusSource) (domain.IngestReport, error) {
	runID, err := uc.begin(ctx)
	if err != nil {
		return domain.IngestReport{}, err
	}

	var total domain.IngestReport
	for {
		pages, name, ok, err := source.Next(ctx)
		if err != nil {
			uc.finish(ctx, runID, total)
			return total, fmt.Errorf("read corpus batch: %w", err)
		}
		if !ok {
			break
		}

		uc.logger.Info("batch_started", "batch", name, "pages", len(pages))
		report, err := uc.ingestBatch(ctx, runID, pages)
		report.Batches = 1
		total.Merge(report)
		if err != nil {
			uc.finish(ctx, runID, total)
			return total, err
		}
	}

	uc.finish(ctx, runID, total)
	return total, nil
}

func (uc *IngestUseCase) begin(ctx context.Context) (string, error) {
	if uc.opts.Collection == "" {
		return "", domain.WrapError(domain.ErrConfiguration, "ingest", errors.New("collection name is empty"))
	}
	if dim := uc.embedder.Dimension(); dim > 0 && uc.opts.Dimension > 0 && dim != uc.opts.Dimension {
		return "", domain.WrapError(
			domain.ErrConfiguration,
			"ingest",
			fmt.Errorf("embedder dimension %d does not match collection dimension %d", dim, uc.opts.Dimension),
		)
	}
	if err := uc.store.EnsureCollection(ctx, uc.opts.Collection, uc.opts.Dimension); err != nil {
		return "", fmt.Errorf("ensure collection: %w", err)
	}

	if uc.journal == nil {
		return uuid.NewString(), nil
	}
	runID, err := uc.journal.StartRun(ctx, uc.opts.Collection)
	if err != nil {
		uc.logger.Warn("journal_start_failed", "error", err)
		return uuid.NewString(), nil
	}
	return runID, nil
}

func (uc *IngestUseCase) finish(ctx context.Context, runID string, report domain.IngestReport) {
	uc.logger.Info("ingest_finished",
		"run_id", runID,
		"pages_seen", report.PagesSeen,
		"pages_indexed", report.PagesIndexed,
		"pages_skipped", report.PagesSkipped,
		"chunks_indexed", report.ChunksIndexed,
		"chunks_failed", report.ChunksFailed,
	)
	if uc.journal == nil {
		return
	}
	if err := uc.journal.FinishRun(context.WithoutCancel(ctx), runID, report); err != nil {
		uc.logger.Warn("journal_finish_failed", "run_id", runID, "error", err)
	}
}

func (uc *IngestUseCase) ingestBatch(ctx context.Context, runID string, pages []domain.Page) (domain.IngestReport, error) {
	var report domain.IngestReport
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.PagesSeen++

		if reason, ok := ValidatePage(page, uc.opts.MinPageLength); !ok {
			uc.skip(ctx, runID, page, reason, &report)
			continue
		}

		chunks := uc.chunkPage(page)
		if len(chunks) == 0 {
			uc.skip(ctx, runID, page, domain.SkipEmptyAfter, &report)
			continue
		}

		uc.logger.Info("page_started", "page_id", page.ID.String(), "title", page.Title, "chunks", len(chunks))
		indexed, err := uc.indexChunks(ctx, runID, chunks, &report)
		if err != nil {
			return report, err
		}
		report.PagesIndexed++
		if uc.observer != nil {
			uc.observer.PageIndexed(indexed)
		}
	}
	return report, nil
}

func (uc *IngestUseCase) chunkPage(page domain.Page) []domain.Chunk {
	clean := uc.normalizer.Normalize(page.Text)
	parts := uc.chunker.Split(clean)
	out := make([]domain.Chunk, 0, len(parts))
	for i, text := range parts {
		out = append(out, domain.Chunk{
			PageID: page.ID,
			Title:  page.Title,
			Index:  i,
			Text:   text,
		})
	}
	return out
}

// indexChunks upserts chunks in sequence order and returns how many succeeded.
func (uc *IngestUseCase) indexChunks(ctx context.Context, runID string, chunks []domain.Chunk, report *domain.IngestReport) (int, error) {
	indexed := 0
	for _, chunk := range chunks {
		err := uc.indexChunk(ctx, chunk)
		if err == nil {
			indexed++
			report.ChunksIndexed++
			continue
		}
		if domain.IsFatal(err) || ctx.Err() != nil {
			return indexed, err
		}

		kind := "store"
		if domain.IsKind(err, domain.ErrEmbedding) {
			kind = "embedding"
		}
		failure := domain.ChunkFailure{
			PageID: chunk.PageID,
			Title:  chunk.Title,
			Chunk:  chunk.Index,
			Reason: err.Error(),
		}
		report.ChunksFailed++
		report.Failures = append(report.Failures, failure)
		uc.logger.Error("chunk_index_failed",
			"page_id", chunk.PageID.String(),
			"title", chunk.Title,
			"chunk", chunk.Index,
			"kind", kind,
			"error", err,
		)
		if uc.observer != nil {
			uc.observer.ChunkFailed(kind)
		}
		if uc.journal != nil {
			if jerr := uc.journal.RecordFailure(ctx, runID, failure); jerr != nil {
				uc.logger.Warn("journal_record_failed", "run_id", runID, "error", jerr)
			}
		}
	}
	return indexed, nil
}

func (uc *IngestUseCase) indexChunk(ctx context.Context, chunk domain.Chunk) error {
	vector, err := uc.embedder.Embed(ctx, chunk.Text, domain.TaskDocument)
	if err != nil {
		if domain.IsFatal(err) || domain.IsKind(err, domain.ErrEmbedding) {
			return err
		}
		return domain.WrapError(domain.ErrEmbedding, "embed chunk", err)
	}
	if uc.opts.Dimension > 0 && len(vector) != uc.opts.Dimension {
		return domain.WrapError(
			domain.ErrConfiguration,
			"embed chunk",
			fmt.Errorf("vector dimension %d does not match collection dimension %d", len(vector), uc.opts.Dimension),
		)
	}

	point := domain.Point{
		ID:      uuid.NewString(),
		Vector:  vector,
		Payload: domain.PayloadFromChunk(chunk),
	}
	if err := uc.store.Upsert(ctx, uc.opts.Collection, point); err != nil {
		if domain.IsFatal(err) || domain.IsKind(err, domain.ErrStore) {
			return err
		}
		return domain.WrapError(domain.ErrStore, "upsert point", err)
	}
	return nil
}

func (uc *IngestUseCase) skip(ctx context.Context, runID string, page domain.Page, reason domain.SkipReason, report *domain.IngestReport) {
	report.PagesSkipped++
	uc.logger.Info("page_skipped", "page_id", page.ID.String(), "title", page.Title, "reason", string(reason))
	if uc.observer != nil {
		uc.observer.PageSkipped(reason)
	}
	if uc.journal != nil {
		if err := uc.journal.RecordSkip(ctx, runID, page, reason); err != nil {
			uc.logger.Warn("journal_record_failed", "run_id", runID, "error", err)
		}
	}
}
