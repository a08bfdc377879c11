package chunking

import (
	"fmt"

	"github.com/kirillkom/lore-assistant/internal/core/domain"
)

const (
	DefaultChunkSize = 500
	DefaultOverlap   = 75
)

// Span is a chunk position in runes, End exclusive.
type Span struct {
	Start int
	End   int
}

// Splitter packs text into windows of at most ChunkSize runes, breaking at a
// paragraph boundary, then a line boundary, then anywhere. Each window after
// the first starts at most Overlap runes before the previous one ended.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, domain.WrapError(domain.ErrConfiguration, "new splitter", fmt.Errorf("chunk size must be positive, got %d", chunkSize))
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, domain.WrapError(
			domain.ErrConfiguration,
			"new splitter",
			fmt.Errorf("overlap %d must be in [0, %d)", overlap, chunkSize),
		)
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}, nil
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	spans := s.spans(runes)
	if len(spans) == 0 {
		return nil
	}
	out := make([]string, 0, len(spans))
	for _, sp := range spans {
		out = append(out, string(runes[sp.Start:sp.End]))
	}
	return out
}

// Spans returns rune offsets of the chunks Split would produce.
func (s *Splitter) Spans(text string) []Span {
	return s.spans([]rune(text))
}

func (s *Splitter) spans(runes []rune) []Span {
	if isBlank(runes) {
		return nil
	}

	n := len(runes)
	out := make([]Span, 0, n/(s.ChunkSize-s.Overlap)+1)
	start := 0
	for {
		end := s.chunkEnd(runes, start)
		out = append(out, Span{Start: start, End: end})
		if end >= n {
			return out
		}
		start = s.nextStart(runes, start, end)
	}
}

func (s *Splitter) chunkEnd(runes []rune, start int) int {
	limit := start + s.ChunkSize
	if limit >= len(runes) {
		return len(runes)
	}
	// The break must leave room for overlap, otherwise the next window
	// would not move forward.
	floor := start + s.Overlap
	for p := limit - 2; p >= start && p+2 > floor; p-- {
		if runes[p] == '\n' && runes[p+1] == '\n' {
			return p + 2
		}
	}
	for p := limit - 1; p >= start && p+1 > floor; p-- {
		if runes[p] == '\n' {
			return p + 1
		}
	}
	return limit
}

func (s *Splitter) nextStart(runes []rune, start, end int) int {
	if s.Overlap == 0 {
		return end
	}
	from := end - s.Overlap
	for q := from; q < end; q++ {
		if q > 0 && runes[q-1] == '\n' {
			return q
		}
	}
	return from
}

func isBlank(runes []rune) bool {
	for _, r := range runes {
		switch r {
		case ' ', '\t', '\n', '\r':
		default:
			return false
		}
	}
	return true
}
