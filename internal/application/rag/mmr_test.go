package rag

import "testing"

func scored(id string, vec []float32) *ScoredChunk {
	return &ScoredChunk{Chunk: Chunk{ID: id, Vector: vec}}
}

func TestMMRFirstPickIsMostRelevant(t *testing.T) {
	query := []float32{1, 0}
	candidates := []*ScoredChunk{
		scored("far", []float32{0, 1}),
		scored("near", []float32{1, 0.1}),
		scored("mid", []float32{1, 1}),
	}
	got := mmrSelect(query, candidates, 1, 0.5)
	if len(got) != 1 || got[0].ID != "near" {
		t.Fatalf("expected first pick to be %q, got %v", "near", ids(got))
	}
}

func TestMMRSecondPickPrefersDiversity(t *testing.T) {
	query := []float32{1, 0}
	// "twin" 与最佳候选几乎相同，"other" 相关性稍低但方向不同
	candidates := []*ScoredChunk{
		scored("best", []float32{0.9, 0.1}),
		scored("twin", []float32{0.9, 0.12}),
		scored("other", []float32{0.7, -0.7}),
	}
	got := mmrSelect(query, candidates, 2, 0.5)
	if len(got) != 2 {
		t.Fatalf("expected 2 picks, got %d", len(got))
	}
	if got[0].ID != "best" {
		t.Errorf("first pick = %q, want %q", got[0].ID, "best")
	}
	if got[1].ID != "other" {
		t.Errorf("second pick = %q, want %q (diversity)", got[1].ID, "other")
	}
}

func TestMMRCapsAtCandidateCount(t *testing.T) {
	query := []float32{1, 0}
	candidates := []*ScoredChunk{
		scored("a", []float32{1, 0}),
		scored("b", []float32{0, 1}),
	}
	got := mmrSelect(query, candidates, 10, 0.5)
	if len(got) != 2 {
		t.Fatalf("expected all candidates, got %d", len(got))
	}
}

func TestMMREmptyCandidates(t *testing.T) {
	if got := mmrSelect([]float32{1}, nil, 5, 0.5); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestMMRFallsBackToBackendScore(t *testing.T) {
	candidates := []*ScoredChunk{
		{Chunk: Chunk{ID: "low"}, Score: 0.2},
		{Chunk: Chunk{ID: "high"}, Score: 0.9},
	}
	got := mmrSelect(nil, candidates, 1, 0.5)
	if len(got) != 1 || got[0].ID != "high" {
		t.Fatalf("expected score fallback to pick %q, got %v", "high", ids(got))
	}
}

func ids(chunks []*ScoredChunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.ID
	}
	return out
}
