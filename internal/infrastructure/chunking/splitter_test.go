package chunking

import (
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kirillkom/lore-assistant/internal/core/domain"
)

func TestNewSplitterRejectsOverlapNotBelowSize(t *testing.T) {
	for _, tc := range []struct{ size, overlap int }{{100, 100}, {100, 150}, {0, 0}, {10, -1}} {
		_, err := NewSplitter(tc.size, tc.overlap)
		if err == nil {
			t.Fatalf("expected error for size=%d overlap=%d", tc.size, tc.overlap)
		}
		if !domain.IsKind(err, domain.ErrConfiguration) {
			t.Fatalf("expected ErrConfiguration, got %v", err)
		}
	}
}

func TestSplitEmptyInput(t *testing.T) {
	s, err := NewSplitter(500, 75)
	if err != nil {
		t.Fatalf("NewSplitter() error = %v", err)
	}
	if got := s.Split(""); len(got) != 0 {
		t.Fatalf("expected no chunks, got %d", len(got))
	}
	if got := s.Split(" \n\n "); len(got) != 0 {
		t.Fatalf("expected no chunks for blank text, got %d", len(got))
	}
}

func TestSplitShortTextIsSingleChunk(t *testing.T) {
	s, _ := NewSplitter(500, 75)
	text := "монолит — религиозная организация, поклоняющаяся камню в центре зоны."
	chunks := s.Split(text)
	if len(chunks) != 1 || chunks[0] != text {
		t.Fatalf("expected single identical chunk, got %#v", chunks)
	}
}

func TestSplitPrefersParagraphBreak(t *testing.T) {
	s, _ := NewSplitter(40, 5)
	first := strings.Repeat("a", 20)
	second := strings.Repeat("b", 30)
	chunks := s.Split(first + "\n\n" + second)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %#v", chunks)
	}
	if chunks[0] != first+"\n\n" {
		t.Fatalf("expected first chunk to end at the paragraph break, got %q", chunks[0])
	}
}

func TestSplitFallsBackToLineBreak(t *testing.T) {
	s, _ := NewSplitter(40, 5)
	first := strings.Repeat("a", 25)
	chunks := s.Split(first + "\n" + strings.Repeat("b", 30))
	if chunks[0] != first+"\n" {
		t.Fatalf("expected first chunk to end at the line break, got %q", chunks[0])
	}
}

func TestSplitHardCutWithoutBreaks(t *testing.T) {
	s, _ := NewSplitter(10, 3)
	chunks := s.Split(strings.Repeat("x", 25))
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 10 {
			t.Fatalf("chunk %d has %d runes", i, n)
		}
	}
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks (step 7), got %d", len(chunks))
	}
}

func TestSpansCoverTextWithBoundedOverlap(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	words := []string{"зона", "сталкер", "артефакт", "monolith", "выброс", "\n", "\n\n", "бар", "свобода", "долг"}

	for iter := 0; iter < 200; iter++ {
		var b strings.Builder
		for n := rng.Intn(300); n > 0; n-- {
			b.WriteString(words[rng.Intn(len(words))])
			b.WriteByte(' ')
		}
		text := b.String()
		size := 5 + rng.Intn(120)
		overlap := rng.Intn(size)

		s, err := NewSplitter(size, overlap)
		if err != nil {
			t.Fatalf("NewSplitter(%d,%d) error = %v", size, overlap, err)
		}
		spans := s.Spans(text)
		total := utf8.RuneCountInString(text)
		if strings.TrimSpace(text) == "" {
			if len(spans) != 0 {
				t.Fatalf("expected no spans for blank text")
			}
			continue
		}

		if spans[0].Start != 0 || spans[len(spans)-1].End != total {
			t.Fatalf("spans do not cover text: first=%v last=%v total=%d", spans[0], spans[len(spans)-1], total)
		}
		for i, sp := range spans {
			if sp.End-sp.Start > size || sp.End <= sp.Start {
				t.Fatalf("span %d %v violates size %d", i, sp, size)
			}
			if i == 0 {
				continue
			}
			prev := spans[i-1]
			if sp.Start <= prev.Start || sp.Start > prev.End {
				t.Fatalf("span %d %v does not follow %v", i, sp, prev)
			}
			if prev.End-sp.Start > overlap {
				t.Fatalf("span %d overlaps previous by %d > %d", i, prev.End-sp.Start, overlap)
			}
		}

		runes := []rune(text)
		var rebuilt []rune
		for i, sp := range spans {
			from := sp.Start
			if i > 0 {
				from = spans[i-1].End
			}
			rebuilt = append(rebuilt, runes[from:sp.End]...)
		}
		if string(rebuilt) != text {
			t.Fatalf("reconstruction mismatch for size=%d overlap=%d", size, overlap)
		}
	}
}
