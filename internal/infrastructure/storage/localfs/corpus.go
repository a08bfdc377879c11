// Package localfs reads crawled wiki batches from a local data directory.
package localfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kirillkom/lore-assistant/internal/core/domain"
)

// BatchPattern names batch files; N counts up from zero.
const BatchPattern = "wiki_pages_%d.json"

// Corpus walks wiki_pages_0.json, wiki_pages_1.json, ... and stops at the
// first missing number.
type Corpus struct {
	basePath string
	next     int
}

func NewCorpus(basePath string) (*Corpus, error) {
	if basePath == "" {
		basePath = "./data"
	}
	info, err := os.Stat(basePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrCorpusMissing, "open corpus", fmt.Errorf("data directory %s does not exist", basePath))
		}
		return nil, fmt.Errorf("stat data dir: %w", err)
	}
	if !info.IsDir() {
		return nil, domain.WrapError(domain.ErrCorpusMissing, "open corpus", fmt.Errorf("%s is not a directory", basePath))
	}
	return &Corpus{basePath: basePath}, nil
}

func (c *Corpus) Next(ctx context.Context) ([]domain.Page, string, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", false, err
	}
	name := fmt.Sprintf(BatchPattern, c.next)
	data, err := os.ReadFile(filepath.Join(c.basePath, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", false, nil
		}
		return nil, name, false, fmt.Errorf("read %s: %w", name, err)
	}

	var pages []domain.Page
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, name, false, fmt.Errorf("decode %s: %w", name, err)
	}
	c.next++
	return pages, name, true, nil
}
