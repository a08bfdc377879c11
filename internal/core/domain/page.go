package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// PageID is the wiki identifier of a page. Batch files carry it as a JSON
// number, older dumps as a string; both decode to the same textual form.
type PageID string

func (id *PageID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode page id: %w", err)
		}
		*id = PageID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode page id: %w", err)
	}
	*id = PageID(n.String())
	return nil
}

func (id PageID) String() string { return string(id) }

// Page is one wiki article as produced by the corpus crawler.
type Page struct {
	ID    PageID `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Chunk is a bounded slice of a page's normalized text.
type Chunk struct {
	PageID PageID
	Title  string
	Index  int
	Text   string
}

type PointMetadata struct {
	WikiID PageID `json:"wiki_id"`
	Title  string `json:"title"`
	Chunk  int    `json:"chunk"`
}

type Payload struct {
	Content  string        `json:"content"`
	Metadata PointMetadata `json:"metadata"`
}

// Point is a single vector stored in the collection. IDs are generated per
// insertion, so re-ingesting the same page produces new points.
type Point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

func PayloadFromChunk(chunk Chunk) Payload {
	return Payload{
		Content: chunk.Text,
		Metadata: PointMetadata{
			WikiID: chunk.PageID,
			Title:  chunk.Title,
			Chunk:  chunk.Index,
		},
	}
}

// TaskMode selects the embedding framing: documents and queries are prefixed
// differently for asymmetric retrieval.
type TaskMode string

const (
	TaskDocument TaskMode = "search_document"
	TaskQuery    TaskMode = "search_query"
)

type SkipReason string

const (
	SkipMissingFields SkipReason = "missing_title_or_text"
	SkipNamespace     SkipReason = "service_namespace"
	SkipTooShort      SkipReason = "too_short"
	SkipRedirect      SkipReason = "redirect"
	SkipEmptyAfter    SkipReason = "empty_after_normalization"
)

type ChunkFailure struct {
	PageID PageID `json:"page_id"`
	Title  string `json:"title"`
	Chunk  int    `json:"chunk"`
	Reason string `json:"reason"`
}

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	Batches       int            `json:"batches"`
	PagesSeen     int            `json:"pages_seen"`
	PagesIndexed  int            `json:"pages_indexed"`
	PagesSkipped  int            `json:"pages_skipped"`
	ChunksIndexed int            `json:"chunks_indexed"`
	ChunksFailed  int            `json:"chunks_failed"`
	Failures      []ChunkFailure `json:"failures,omitempty"`
}

func (r *IngestReport) Merge(other IngestReport) {
	r.Batches += other.Batches
	r.PagesSeen += other.PagesSeen
	r.PagesIndexed += other.PagesIndexed
	r.PagesSkipped += other.PagesSkipped
	r.ChunksIndexed += other.ChunksIndexed
	r.ChunksFailed += other.ChunksFailed
	r.Failures = append(r.Failures, other.Failures...)
}
