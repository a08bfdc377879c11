package localfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/lore-assistant/internal/core/domain"
)

func writeBatch(t *testing.T, dir string, n int, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf(BatchPattern, n)), []byte(body), 0o644); err != nil {
		t.Fatalf("write batch: %v", err)
	}
}

func TestNewCorpusMissingDirectory(t *testing.T) {
	_, err := NewCorpus(filepath.Join(t.TempDir(), "absent"))
	if !domain.IsKind(err, domain.ErrCorpusMissing) {
		t.Fatalf("expected corpus missing error, got %v", err)
	}
}

func TestNextStopsAtFirstGap(t *testing.T) {
	dir := t.TempDir()
	writeBatch(t, dir, 0, `[{"id":1,"title":"Монолит","text":"текст"}]`)
	writeBatch(t, dir, 1, `[{"id":"2","title":"Долг","text":"текст"},{"id":3,"title":"Свобода","text":"текст"}]`)
	writeBatch(t, dir, 3, `[{"id":4,"title":"Never read","text":"x"}]`)

	corpus, err := NewCorpus(dir)
	if err != nil {
		t.Fatalf("NewCorpus() error = %v", err)
	}

	var names []string
	var ids []domain.PageID
	for {
		pages, name, ok, err := corpus.Next(context.Background())
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if !ok {
			break
		}
		names = append(names, name)
		for _, p := range pages {
			ids = append(ids, p.ID)
		}
	}
	if len(names) != 2 || names[1] != "wiki_pages_1.json" {
		t.Fatalf("unexpected batches %v", names)
	}
	if len(ids) != 3 || ids[0] != "1" || ids[1] != "2" {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestNextReportsCorruptBatch(t *testing.T) {
	dir := t.TempDir()
	writeBatch(t, dir, 0, `{not json`)
	corpus, _ := NewCorpus(dir)
	if _, _, _, err := corpus.Next(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
}
