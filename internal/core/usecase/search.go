package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/lore-assistant/internal/core/domain"
	"github.com/kirillkom/lore-assistant/internal/core/ports"
)

type SearchUseCase struct {
	embedder   ports.Embedder
	store      ports.VectorStore
	collection string
	dimension  int
}

func NewSearchUseCase(
	embedder ports.Embedder,
	store ports.VectorStore,
	collection string,
	dimension int,
) *SearchUseCase {
	return &SearchUseCase{
		embedder:   embedder,
		store:      store,
		collection: collection,
		dimension:  dimension,
	}
}

// Search embeds the query in query mode and returns at most topK results
// ordered by descending score.
func (uc *SearchUseCase) Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("query is empty"))
	}
	if topK <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", fmt.Errorf("top_k must be positive, got %d", topK))
	}

	queryVector, err := uc.embedder.Embed(ctx, query, domain.TaskQuery)
	if err != nil {
		if domain.IsKind(err, domain.ErrEmbedding) || domain.IsFatal(err) {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		return nil, domain.WrapError(domain.ErrEmbedding, "embed query", err)
	}
	if uc.dimension > 0 && len(queryVector) != uc.dimension {
		return nil, domain.WrapError(
			domain.ErrConfiguration,
			"embed query",
			fmt.Errorf("vector dimension %d does not match collection dimension %d", len(queryVector), uc.dimension),
		)
	}

	results, err := uc.store.Query(ctx, uc.collection, queryVector, topK)
	if err != nil {
		if domain.IsKind(err, domain.ErrStore) || domain.IsFatal(err) {
			return nil, fmt.Errorf("search vector db: %w", err)
		}
		return nil, domain.WrapError(domain.ErrStore, "search vector db", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}
