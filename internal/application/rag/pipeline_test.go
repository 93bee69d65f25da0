package rag

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"library-qa-api/internal/domain/entity"
	apperrors "library-qa-api/pkg/errors"
)

// fakeRegistry 内存登记表
type fakeRegistry struct {
	records []*entity.DocumentRecord
}

func (f *fakeRegistry) Record(_ context.Context, rec *entity.DocumentRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeRegistry) MarkReplaced(_ context.Context, source, currentBatchID string) error {
	for _, rec := range f.records {
		if rec.Source == source && rec.BatchID != currentBatchID {
			rec.Status = entity.DocumentStatusReplaced
		}
	}
	return nil
}

func writeTempDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp doc: %v", err)
	}
	return path
}

func TestIngestStampsSourceAndCountsChunks(t *testing.T) {
	idx := &fakeIndex{}
	p := NewPipeline(&fakeEmbedder{}, idx, nil, NewSplitter(50, 0), PipelineOptions{})

	path := writeTempDoc(t, "notes.txt", "first paragraph here.\n\nsecond paragraph over there.\n\nthird one.")
	report, err := p.Ingest(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Source != "notes.txt" {
		t.Errorf("report.Source = %q, want notes.txt", report.Source)
	}
	if report.Chunks != len(idx.chunks) {
		t.Errorf("report.Chunks = %d, index holds %d", report.Chunks, len(idx.chunks))
	}
	for _, c := range idx.chunks {
		if c.Source != "notes.txt" {
			t.Errorf("chunk %s carries source %q", c.ID, c.Source)
		}
		if c.BatchID != report.BatchID {
			t.Errorf("chunk %s carries batch %q, want %q", c.ID, c.BatchID, report.BatchID)
		}
		if len(c.Vector) == 0 {
			t.Errorf("chunk %s was not embedded", c.ID)
		}
	}
}

func TestIngestAppendsOnReingest(t *testing.T) {
	idx := &fakeIndex{}
	p := NewPipeline(&fakeEmbedder{}, idx, nil, NewSplitter(50, 0), PipelineOptions{})

	path := writeTempDoc(t, "dup.txt", "some content.\n\nmore content here.")
	first, err := p.Ingest(context.Background(), path)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if _, err := p.Ingest(context.Background(), path); err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if len(idx.chunks) != first.Chunks*2 {
		t.Errorf("index holds %d chunks after re-ingest, want %d", len(idx.chunks), first.Chunks*2)
	}
	if len(idx.deletedSources) != 0 {
		t.Errorf("unexpected source deletes: %v", idx.deletedSources)
	}
}

func TestIngestReplacesWhenConfigured(t *testing.T) {
	idx := &fakeIndex{}
	p := NewPipeline(&fakeEmbedder{}, idx, nil, NewSplitter(50, 0), PipelineOptions{ReplaceOnReingest: true})

	path := writeTempDoc(t, "dup.txt", "some content.\n\nmore content here.")
	first, err := p.Ingest(context.Background(), path)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if _, err := p.Ingest(context.Background(), path); err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if len(idx.chunks) != first.Chunks {
		t.Errorf("index holds %d chunks after replace, want %d", len(idx.chunks), first.Chunks)
	}
	if len(idx.deletedSources) != 2 || idx.deletedSources[0] != "dup.txt" {
		t.Errorf("source deletes = %v", idx.deletedSources)
	}
}

func TestIngestReplaceMarksSupersededRecords(t *testing.T) {
	idx := &fakeIndex{}
	reg := &fakeRegistry{}
	p := NewPipeline(&fakeEmbedder{}, idx, reg, NewSplitter(50, 0), PipelineOptions{ReplaceOnReingest: true})

	path := writeTempDoc(t, "dup.txt", "some content.\n\nmore content here.")
	if _, err := p.Ingest(context.Background(), path); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	second, err := p.Ingest(context.Background(), path)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	if len(reg.records) != 2 {
		t.Fatalf("registry holds %d records, want 2", len(reg.records))
	}
	if reg.records[0].Status != entity.DocumentStatusReplaced {
		t.Errorf("superseded record status = %q, want %q", reg.records[0].Status, entity.DocumentStatusReplaced)
	}
	if reg.records[1].Status != entity.DocumentStatusIngested {
		t.Errorf("current record status = %q, want %q", reg.records[1].Status, entity.DocumentStatusIngested)
	}
	if reg.records[1].BatchID != second.BatchID {
		t.Errorf("current record batch = %q, want %q", reg.records[1].BatchID, second.BatchID)
	}
}

func TestIngestAppendKeepsAllRecordsIngested(t *testing.T) {
	reg := &fakeRegistry{}
	p := NewPipeline(&fakeEmbedder{}, &fakeIndex{}, reg, NewSplitter(50, 0), PipelineOptions{})

	path := writeTempDoc(t, "dup.txt", "some content.\n\nmore content here.")
	for i := 0; i < 2; i++ {
		if _, err := p.Ingest(context.Background(), path); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}
	for _, rec := range reg.records {
		if rec.Status != entity.DocumentStatusIngested {
			t.Errorf("record %s status = %q, want %q", rec.BatchID, rec.Status, entity.DocumentStatusIngested)
		}
	}
}

func TestIngestThenQueryAnswersFromIngestedDocument(t *testing.T) {
	idx := &fakeIndex{}
	emb := &fakeEmbedder{}
	p := NewPipeline(emb, idx, nil, NewSplitter(60, 0), PipelineOptions{})

	path := writeTempDoc(t, "manual.txt", "The librarian restarts the indexer nightly.\n\nBackups run on sunday.")
	if _, err := p.Ingest(context.Background(), path); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	cm := &fakeChatModel{reply: "Nightly, according to the manual."}
	e := NewEngine(emb, idx, &fakeFactory{cm: cm}, EngineOptions{})

	answer, err := e.Query(context.Background(), &QueryContext{Question: "When does the indexer restart?"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if answer.Text != cm.reply {
		t.Errorf("answer = %q, want %q", answer.Text, cm.reply)
	}
	if len(answer.Sources) != 1 || answer.Sources[0] != "manual.txt" {
		t.Errorf("sources = %v, want [manual.txt]", answer.Sources)
	}
	if cm.calls != 1 {
		t.Errorf("generator called %d times, want 1", cm.calls)
	}
}

func TestIngestMissingFile(t *testing.T) {
	p := NewPipeline(&fakeEmbedder{}, &fakeIndex{}, nil, nil, PipelineOptions{})
	_, err := p.Ingest(context.Background(), filepath.Join(t.TempDir(), "absent.txt"))
	if !apperrors.HasCode(err, apperrors.CodeDocumentNotFound) {
		t.Fatalf("expected document-not-found, got %v", err)
	}
}

func TestIngestEmptyDocument(t *testing.T) {
	p := NewPipeline(&fakeEmbedder{}, &fakeIndex{}, nil, nil, PipelineOptions{})
	path := writeTempDoc(t, "empty.txt", "   \n\t\n  ")
	_, err := p.Ingest(context.Background(), path)
	if !apperrors.HasCode(err, apperrors.CodeEmptyDocument) {
		t.Fatalf("expected empty-document, got %v", err)
	}
}

func TestIngestRollsBackBatchOnInsertFailure(t *testing.T) {
	idx := &fakeIndex{insertErr: stderrors.New("milvus write failed")}
	p := NewPipeline(&fakeEmbedder{}, idx, nil, NewSplitter(50, 0), PipelineOptions{})

	path := writeTempDoc(t, "doomed.txt", "content to index.\n\nsecond part.")
	_, err := p.Ingest(context.Background(), path)
	if !apperrors.HasCode(err, apperrors.CodeVectorDBError) {
		t.Fatalf("expected vector-db error, got %v", err)
	}
	if len(idx.deletedBatches) != 1 {
		t.Fatalf("expected one batch rollback, got %v", idx.deletedBatches)
	}
	if len(idx.chunks) != 0 {
		t.Errorf("index still holds %d chunks after rollback", len(idx.chunks))
	}
}

func TestIngestNilEmbedderIsConfigurationError(t *testing.T) {
	p := NewPipeline(nil, &fakeIndex{}, nil, nil, PipelineOptions{})
	path := writeTempDoc(t, "doc.txt", "real content here.")
	_, err := p.Ingest(context.Background(), path)
	if !apperrors.HasCode(err, apperrors.CodeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
