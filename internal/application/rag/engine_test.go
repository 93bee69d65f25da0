package rag

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	apperrors "library-qa-api/pkg/errors"
	"library-qa-api/pkg/retry"
)

// fakeEmbedder 返回固定维度的向量，内容由文本长度决定
type fakeEmbedder struct {
	calls int
	fail  error
}

func (f *fakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = []float64{float64(len(t)), 1}
	}
	return out, nil
}

// fakeIndex 内存向量索引，Search 应用来源过滤
type fakeIndex struct {
	chunks         []*Chunk
	countErr       error
	searchErr      error
	insertErr      error
	deletedSources []string
	deletedBatches []string
}

func (f *fakeIndex) EnsureCollection(context.Context) error { return nil }
func (f *fakeIndex) Insert(_ context.Context, cs []*Chunk) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.chunks = append(f.chunks, cs...)
	return nil
}
func (f *fakeIndex) DeleteBySource(_ context.Context, src string) error {
	f.deletedSources = append(f.deletedSources, src)
	kept := f.chunks[:0]
	for _, c := range f.chunks {
		if c.Source != src {
			kept = append(kept, c)
		}
	}
	f.chunks = kept
	return nil
}
func (f *fakeIndex) DeleteByBatch(_ context.Context, batchID string) error {
	f.deletedBatches = append(f.deletedBatches, batchID)
	kept := f.chunks[:0]
	for _, c := range f.chunks {
		if c.BatchID != batchID {
			kept = append(kept, c)
		}
	}
	f.chunks = kept
	return nil
}
func (f *fakeIndex) Count(context.Context) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return int64(len(f.chunks)), nil
}
func (f *fakeIndex) Search(_ context.Context, params *SearchParams) ([]*ScoredChunk, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []*ScoredChunk
	for _, c := range f.chunks {
		if params.Source != "" && c.Source != params.Source {
			continue
		}
		out = append(out, &ScoredChunk{Chunk: *c, Score: 1})
		if len(out) >= params.TopK {
			break
		}
	}
	return out, nil
}

// fakeChatModel 记录调用次数，返回固定补全
type fakeChatModel struct {
	calls    int
	reply    string
	failures int
	failWith error
}

func (f *fakeChatModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, f.failWith
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, stderrors.New("streaming not supported")
}

type fakeFactory struct {
	cm  model.BaseChatModel
	err error
}

func (f *fakeFactory) Default(context.Context) (model.BaseChatModel, error) {
	return f.cm, f.err
}

func seededIndex() *fakeIndex {
	return &fakeIndex{chunks: []*Chunk{
		{ID: "1", Source: "alpha.pdf", Page: 1, Text: "alpha text", Vector: []float32{1, 0}},
		{ID: "2", Source: "alpha.pdf", Page: 2, Text: "more alpha", Vector: []float32{0.9, 0.1}},
		{ID: "3", Source: "beta.txt", Page: 1, Text: "beta text", Vector: []float32{0, 1}},
	}}
}

func fastPolicy() *retry.Policy {
	return &retry.Policy{Attempts: 3, Initial: time.Millisecond, Max: time.Millisecond, Multiplier: 1}
}

func TestQueryEmptyQuestionRejected(t *testing.T) {
	e := NewEngine(&fakeEmbedder{}, seededIndex(), &fakeFactory{cm: &fakeChatModel{reply: "ok"}}, EngineOptions{})
	if _, err := e.Query(context.Background(), &QueryContext{Question: "   "}); !apperrors.HasCode(err, apperrors.CodeInvalidParam) {
		t.Fatalf("expected invalid-param error, got %v", err)
	}
}

func TestQueryEmptyStoreSkipsGeneration(t *testing.T) {
	cm := &fakeChatModel{reply: "should not run"}
	emb := &fakeEmbedder{}
	e := NewEngine(emb, &fakeIndex{}, &fakeFactory{cm: cm}, EngineOptions{})

	ans, err := e.Query(context.Background(), &QueryContext{Question: "anything?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Text != EmptyStoreAnswer {
		t.Errorf("answer = %q, want the empty-store answer", ans.Text)
	}
	if ans.Sources == nil || len(ans.Sources) != 0 {
		t.Errorf("sources = %v, want empty non-nil slice", ans.Sources)
	}
	if cm.calls != 0 {
		t.Errorf("chat model was called %d times on an empty store", cm.calls)
	}
	if emb.calls != 0 {
		t.Errorf("embedder was called %d times on an empty store", emb.calls)
	}
}

func TestQueryAnsweredWithDedupedSources(t *testing.T) {
	cm := &fakeChatModel{reply: "the answer"}
	e := NewEngine(&fakeEmbedder{}, seededIndex(), &fakeFactory{cm: cm}, EngineOptions{})

	ans, err := e.Query(context.Background(), &QueryContext{Question: "what is alpha?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Text != "the answer" {
		t.Errorf("answer = %q", ans.Text)
	}
	if cm.calls != 1 {
		t.Errorf("chat model calls = %d, want 1", cm.calls)
	}
	seen := map[string]int{}
	for _, s := range ans.Sources {
		seen[s]++
	}
	for s, n := range seen {
		if n > 1 {
			t.Errorf("source %q appears %d times", s, n)
		}
	}
	if len(ans.Sources) != 2 {
		t.Errorf("sources = %v, want both documents once each", ans.Sources)
	}
}

func TestQuerySourceFilterRestrictsRetrieval(t *testing.T) {
	cm := &fakeChatModel{reply: "filtered"}
	e := NewEngine(&fakeEmbedder{}, seededIndex(), &fakeFactory{cm: cm}, EngineOptions{})

	ans, err := e.Query(context.Background(), &QueryContext{Question: "what is beta?", SourceFilter: "beta.txt"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ans.Sources) != 1 || ans.Sources[0] != "beta.txt" {
		t.Errorf("sources = %v, want only beta.txt", ans.Sources)
	}
}

func TestQueryDegradesOnMissingChatConfig(t *testing.T) {
	factory := &fakeFactory{err: apperrors.New(apperrors.CodeConfiguration, "chat provider is not configured").
		WithDetail("set llm.providers.openai.api_key in the configuration")}
	e := NewEngine(&fakeEmbedder{}, seededIndex(), factory, EngineOptions{})

	ans, err := e.Query(context.Background(), &QueryContext{Question: "anything?"})
	if err != nil {
		t.Fatalf("expected a degraded answer, got error %v", err)
	}
	if !strings.Contains(ans.Text, "not fully configured") {
		t.Errorf("answer does not explain the degradation: %q", ans.Text)
	}
	if !strings.Contains(ans.Text, "llm.providers.openai.api_key") {
		t.Errorf("answer does not name the missing setting: %q", ans.Text)
	}
	if len(ans.Sources) != 0 {
		t.Errorf("sources = %v, want none", ans.Sources)
	}
}

func TestQueryRetriesTransientGenerationFailure(t *testing.T) {
	cm := &fakeChatModel{reply: "recovered", failures: 2, failWith: stderrors.New("429 too many requests")}
	e := NewEngine(&fakeEmbedder{}, seededIndex(), &fakeFactory{cm: cm},
		EngineOptions{RetryPolicy: fastPolicy()})

	ans, err := e.Query(context.Background(), &QueryContext{Question: "anything?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Text != "recovered" {
		t.Errorf("answer = %q, want the recovered completion", ans.Text)
	}
	if cm.calls != 3 {
		t.Errorf("chat model calls = %d, want 3", cm.calls)
	}
}

func TestQueryDoesNotRetryPermanentFailure(t *testing.T) {
	cm := &fakeChatModel{reply: "never", failures: 10, failWith: stderrors.New("invalid api key")}
	e := NewEngine(&fakeEmbedder{}, seededIndex(), &fakeFactory{cm: cm},
		EngineOptions{RetryPolicy: fastPolicy()})

	ans, err := e.Query(context.Background(), &QueryContext{Question: "anything?"})
	if err != nil {
		t.Fatalf("expected a degraded answer, got error %v", err)
	}
	if ans.Text != degradedAnswer {
		t.Errorf("answer = %q, want the generic degraded answer", ans.Text)
	}
	if cm.calls != 1 {
		t.Errorf("chat model calls = %d, want 1", cm.calls)
	}
}

func TestQueryDegradesOnNilEmbedder(t *testing.T) {
	e := NewEngine(nil, seededIndex(), &fakeFactory{cm: &fakeChatModel{reply: "ok"}}, EngineOptions{})

	ans, err := e.Query(context.Background(), &QueryContext{Question: "anything?"})
	if err != nil {
		t.Fatalf("expected a degraded answer, got error %v", err)
	}
	if !strings.Contains(ans.Text, "embedding.api_key") {
		t.Errorf("answer does not name the missing setting: %q", ans.Text)
	}
}
