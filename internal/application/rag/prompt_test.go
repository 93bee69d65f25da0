package rag

import (
	"reflect"
	"strings"
	"testing"
)

func TestExtractSourcesFirstSeenOrder(t *testing.T) {
	chunks := []*ScoredChunk{
		{Chunk: Chunk{Source: "b.pdf"}},
		{Chunk: Chunk{Source: "a.txt"}},
		{Chunk: Chunk{Source: "b.pdf"}},
		{Chunk: Chunk{Source: ""}},
	}
	got := ExtractSources(chunks)
	want := []string{"b.pdf", "a.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("sources = %v, want %v", got, want)
	}
}

func TestExtractSourcesNeverNil(t *testing.T) {
	if got := ExtractSources(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", got)
	}
}

func TestBuildMessagesLayout(t *testing.T) {
	chunks := []*ScoredChunk{
		{Chunk: Chunk{Source: "guide.pdf", Page: 3, Text: "line one\nline  two"}},
	}
	turns := []ChatTurn{{User: "earlier question", Assistant: "earlier answer"}}

	msgs := BuildMessages(chunks, turns, "what now?")
	if len(msgs) != 2 {
		t.Fatalf("expected system + user message, got %d", len(msgs))
	}
	body := msgs[1].Content
	if !strings.Contains(body, "[1] (guide.pdf, p.3) line one line two") {
		t.Errorf("context passage not rendered as one line:\n%s", body)
	}
	if !strings.Contains(body, "User: earlier question") || !strings.Contains(body, "Assistant: earlier answer") {
		t.Errorf("history not rendered:\n%s", body)
	}
	if !strings.HasSuffix(strings.TrimSpace(body), "Question: what now?") {
		t.Errorf("question not last:\n%s", body)
	}
}
