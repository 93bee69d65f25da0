package rag

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(2000, 200)
	got := s.Split("a short paragraph")
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}
	if got[0] != "a short paragraph" {
		t.Fatalf("unexpected chunk: %q", got[0])
	}
}

func TestSplitEmptyText(t *testing.T) {
	s := NewSplitter(2000, 200)
	if got := s.Split("   \n\n  "); got != nil {
		t.Fatalf("expected nil for whitespace-only text, got %v", got)
	}
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	s := NewSplitter(100, 0)
	para1 := strings.Repeat("alpha ", 12) // ~72 chars
	para2 := strings.Repeat("beta ", 12)  // ~60 chars
	text := strings.TrimSpace(para1) + "\n\n" + strings.TrimSpace(para2)

	got := s.Split(text)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(got), got)
	}
	if strings.Contains(got[0], "beta") {
		t.Errorf("first chunk crosses the paragraph boundary: %q", got[0])
	}
	if strings.Contains(got[1], "alpha") {
		t.Errorf("second chunk crosses the paragraph boundary: %q", got[1])
	}
}

func TestSplitRespectsSizeBound(t *testing.T) {
	s := NewSplitter(80, 0)
	text := strings.Repeat("one two three four five. ", 40)
	for _, chunk := range s.Split(text) {
		if n := utf8.RuneCountInString(chunk); n > 80 {
			t.Errorf("chunk of %d runes exceeds bound: %q", n, chunk)
		}
	}
}

func TestSplitHardSplitsUnbrokenText(t *testing.T) {
	s := NewSplitter(50, 0)
	text := strings.Repeat("x", 175)
	got := s.Split(text)
	if len(got) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(got))
	}
	for _, chunk := range got {
		if utf8.RuneCountInString(chunk) > 50 {
			t.Errorf("hard-split chunk exceeds bound: %d runes", utf8.RuneCountInString(chunk))
		}
	}
}

func TestSplitOverlapCarriesPreviousTail(t *testing.T) {
	s := NewSplitter(60, 20)
	text := strings.Repeat("alpha ", 9) + "omega.\n\n" + strings.Repeat("beta ", 9) + "delta."

	got := s.Split(text)
	if len(got) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(got))
	}
	if !strings.Contains(got[1], "omega.") {
		t.Errorf("second chunk is missing the tail of the first: %q", got[1])
	}
}

func TestNewSplitterFallsBackOnBadParams(t *testing.T) {
	s := NewSplitter(0, -1)
	if s.chunkSize != defaultChunkSize {
		t.Errorf("chunkSize = %d, want %d", s.chunkSize, defaultChunkSize)
	}
	if s.chunkOverlap != defaultChunkOverlap {
		t.Errorf("chunkOverlap = %d, want %d", s.chunkOverlap, defaultChunkOverlap)
	}
}
