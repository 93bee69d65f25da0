package rag

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"library-qa-api/internal/domain/entity"
	"library-qa-api/pkg/errors"
	"library-qa-api/pkg/logger"
	"library-qa-api/pkg/metrics"
	"library-qa-api/pkg/retry"
)

const (
	defaultEmbedBatchSize = 16
	defaultMaxConcurrency = 4
)

// Pipeline 文档入库流水线：加载 → 切分 → 向量化 → 原子写入
type Pipeline struct {
	embedder    embedding.Embedder
	index       VectorIndex
	registry    DocumentRegistry
	splitter    *Splitter
	batchSize   int
	concurrency int
	replace     bool
	policy      retry.Policy

	// 单写者：同一时间只允许一次入库,避免交叉批次的部分写入
	mu sync.Mutex
}

// PipelineOptions Pipeline 的可选参数
type PipelineOptions struct {
	BatchSize         int
	MaxConcurrency    int
	ReplaceOnReingest bool
	RetryPolicy       *retry.Policy
}

// NewPipeline 创建入库流水线；embedder 与 registry 允许为 nil,在运行期降级处理
func NewPipeline(embedder embedding.Embedder, index VectorIndex, registry DocumentRegistry, splitter *Splitter, opts PipelineOptions) *Pipeline {
	if splitter == nil {
		splitter = NewSplitter(0, 0)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultEmbedBatchSize
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = defaultMaxConcurrency
	}
	policy := retry.DefaultPolicy()
	if opts.RetryPolicy != nil {
		policy = *opts.RetryPolicy
	}
	return &Pipeline{
		embedder:    embedder,
		index:       index,
		registry:    registry,
		splitter:    splitter,
		batchSize:   opts.BatchSize,
		concurrency: opts.MaxConcurrency,
		replace:     opts.ReplaceOnReingest,
		policy:      policy,
	}
}

// Ingest 将一个文档完整入库并返回入库报告
//
// 失败语义:向量化或写入失败时回滚本批次已写入的分片,索引要么包含
// 文档的全部分片,要么一个也不包含。
func (p *Pipeline) Ingest(ctx context.Context, path string) (*IngestReport, error) {
	start := time.Now()
	report, err := p.ingest(ctx, path)
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.IngestTotal.WithLabelValues(status).Inc()
	metrics.IngestDuration.Observe(time.Since(start).Seconds())
	if report != nil {
		metrics.IngestChunks.Observe(float64(report.Chunks))
	}
	return report, err
}

func (p *Pipeline) ingest(ctx context.Context, path string) (*IngestReport, error) {
	if p.index == nil {
		return nil, errors.New(errors.CodeConfiguration, "vector index is not configured")
	}
	if p.embedder == nil {
		return nil, errors.New(errors.CodeConfiguration, "embedding provider is not configured").
			WithDetail("set embedding.api_key and embedding.endpoint in the configuration")
	}

	// 1. 加载文档并按页切出文本段
	segments, err := LoadDocument(path)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, errors.New(errors.CodeEmptyDocument, "document contains no extractable text")
	}

	source := filepath.Base(path)
	batchID := uuid.NewString()

	// 2. 切分:每个分片统一打上来源文件名与批次号
	chunks := make([]*Chunk, 0, len(segments)*4)
	for _, seg := range segments {
		for _, piece := range p.splitter.Split(seg.Text) {
			chunks = append(chunks, &Chunk{
				ID:         uuid.NewString(),
				BatchID:    batchID,
				Source:     source,
				Page:       seg.Page,
				ChunkIndex: len(chunks),
				Text:       piece,
			})
		}
	}
	if len(chunks) == 0 {
		return nil, errors.New(errors.CodeNoChunks, "document produced no chunks")
	}

	// 3. 并发向量化
	if err := p.embedChunks(ctx, chunks); err != nil {
		return nil, err
	}

	// 4. 写入阶段:单写者串行,保证同批次分片原子可见
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.index.EnsureCollection(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CodeVectorDBError, "failed to ensure collection")
	}
	if p.replace {
		if err := p.index.DeleteBySource(ctx, source); err != nil {
			return nil, errors.Wrap(err, errors.CodeVectorDBError, "failed to delete previous chunks")
		}
	}
	if err := p.index.Insert(ctx, chunks); err != nil {
		// 回滚:删除本批次可能已落盘的分片
		if rbErr := p.index.DeleteByBatch(ctx, batchID); rbErr != nil {
			logger.Error(ctx, "rollback after failed insert did not complete", rbErr, "batch_id", batchID)
		}
		return nil, errors.Wrap(err, errors.CodeVectorDBError, "failed to insert chunks")
	}

	report := &IngestReport{
		Source:  source,
		BatchID: batchID,
		Pages:   len(segments),
		Chunks:  len(chunks),
	}

	// 登记为尽力而为:登记失败不影响已完成的入库
	if p.registry != nil {
		rec := &entity.DocumentRecord{
			ID:         uuid.NewString(),
			Source:     source,
			BatchID:    batchID,
			ChunkCount: report.Chunks,
			Pages:      report.Pages,
			Status:     entity.DocumentStatusIngested,
			IngestedAt: time.Now(),
		}
		if err := p.registry.Record(ctx, rec); err != nil {
			logger.Warn(ctx, "failed to record ingestion", "source", source, "error", err.Error())
		}
		// 替换模式下旧分片已被删除,对应登记记录同步标记为已替换
		if p.replace {
			if err := p.registry.MarkReplaced(ctx, source, batchID); err != nil {
				logger.Warn(ctx, "failed to mark superseded ingestions", "source", source, "error", err.Error())
			}
		}
	}

	logger.Info(ctx, "document ingested",
		"source", source, "batch_id", batchID, "pages", report.Pages, "chunks", report.Chunks)
	return report, nil
}

// embedChunks 分批并发调用向量化接口,瞬时错误按退避策略重试
func (p *Pipeline) embedChunks(ctx context.Context, chunks []*Chunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for begin := 0; begin < len(chunks); begin += p.batchSize {
		end := begin + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[begin:end]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Text
			}
			var vectors [][]float64
			err := retry.Do(gctx, p.policy, func(ctx context.Context) error {
				var embedErr error
				vectors, embedErr = p.embedder.EmbedStrings(ctx, texts)
				return classifyProviderError(embedErr, errors.CodeEmbeddingFailed, "embedding request failed")
			})
			if err != nil {
				return err
			}
			if len(vectors) != len(batch) {
				return errors.New(errors.CodeEmbeddingFailed, "embedding count does not match input count")
			}
			for i, vec := range vectors {
				out := make([]float32, len(vec))
				for j, v := range vec {
					out[j] = float32(v)
				}
				batch[i].Vector = out
			}
			return nil
		})
	}
	return g.Wait()
}
