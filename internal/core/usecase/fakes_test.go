package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kirillkom/lore-assistant/internal/core/domain"
)

type normalizerFake struct{}

func (normalizerFake) Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// paragraphChunker splits on blank lines.
type paragraphChunker struct{}

func (paragraphChunker) Split(text string) []string {
	var out []string
	for _, part := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(part) != "" {
			out = append(out, part)
		}
	}
	return out
}

type embedCall struct {
	text string
	mode domain.TaskMode
}

type embedderFake struct {
	dim    int
	failOn map[string]error
	// wrongDim makes every vector one component too long.
	wrongDim bool

	mu    sync.Mutex
	calls []embedCall
}

func (f *embedderFake) Dimension() int { return f.dim }

func (f *embedderFake) Embed(_ context.Context, text string, mode domain.TaskMode) ([]float32, error) {
	f.mu.Lock()
	f.calls = append(f.calls, embedCall{text: text, mode: mode})
	f.mu.Unlock()

	if err, ok := f.failOn[text]; ok {
		return nil, err
	}
	n := f.dim
	if f.wrongDim {
		n++
	}
	vec := make([]float32, n)
	for i := range vec {
		vec[i] = float32(len(text)%7+1) / float32(i+1)
	}
	return vec, nil
}

type storeFake struct {
	ensureErr   error
	upsertErrOn map[int]error // by upsert call number, starting at 0
	queryResult []domain.SearchResult
	queryErr    error

	ensured     map[string]int
	upsertCalls int
	points      []domain.Point
	lastLimit   int
}

func (f *storeFake) EnsureCollection(_ context.Context, name string, dim int) error {
	if f.ensureErr != nil {
		return f.ensureErr
	}
	if f.ensured == nil {
		f.ensured = map[string]int{}
	}
	f.ensured[name] = dim
	return nil
}

func (f *storeFake) Upsert(_ context.Context, _ string, p domain.Point) error {
	call := f.upsertCalls
	f.upsertCalls++
	if err, ok := f.upsertErrOn[call]; ok {
		return err
	}
	f.points = append(f.points, p)
	return nil
}

func (f *storeFake) Query(_ context.Context, _ string, _ []float32, limit int) ([]domain.SearchResult, error) {
	f.lastLimit = limit
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	out := make([]domain.SearchResult, len(f.queryResult))
	copy(out, f.queryResult)
	return out, nil
}

func (f *storeFake) Count(context.Context, string) (int, error) { return len(f.points), nil }

func (f *storeFake) DropCollection(context.Context, string) error {
	f.points = nil
	return nil
}

type journalFake struct {
	startErr error

	started  int
	skips    []domain.SkipReason
	failures []domain.ChunkFailure
	finished []domain.IngestReport
}

func (f *journalFake) StartRun(context.Context, string) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started++
	return fmt.Sprintf("run-%d", f.started), nil
}

func (f *journalFake) RecordSkip(_ context.Context, _ string, _ domain.Page, reason domain.SkipReason) error {
	f.skips = append(f.skips, reason)
	return nil
}

func (f *journalFake) RecordFailure(_ context.Context, _ string, failure domain.ChunkFailure) error {
	f.failures = append(f.failures, failure)
	return nil
}

func (f *journalFake) FinishRun(_ context.Context, _ string, report domain.IngestReport) error {
	f.finished = append(f.finished, report)
	return nil
}

type observerFake struct {
	skipped     []domain.SkipReason
	indexed     []int
	chunkFailed []string
	outcomes    []string
	authRetries int
}

func (f *observerFake) PageSkipped(reason domain.SkipReason) { f.skipped = append(f.skipped, reason) }
func (f *observerFake) PageIndexed(chunks int)              { f.indexed = append(f.indexed, chunks) }
func (f *observerFake) ChunkFailed(kind string)             { f.chunkFailed = append(f.chunkFailed, kind) }
func (f *observerFake) AnswerFinished(_ string, outcome string, _ int) {
	f.outcomes = append(f.outcomes, outcome)
}
func (f *observerFake) AuthRetry(string) { f.authRetries++ }

type sourceFake struct {
	batches [][]domain.Page
	err     error
	next    int
}

func (f *sourceFake) Next(context.Context) ([]domain.Page, string, bool, error) {
	if f.next >= len(f.batches) {
		if f.err != nil {
			return nil, "", false, f.err
		}
		return nil, "", false, nil
	}
	batch := f.batches[f.next]
	name := fmt.Sprintf("wiki_pages_%d.json", f.next)
	f.next++
	return batch, name, true, nil
}
