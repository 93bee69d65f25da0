// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"library-qa-api/internal/application/rag"
	"library-qa-api/pkg/metrics"
)

// Repository 文档分片向量仓储,实现应用层的 VectorIndex
type Repository struct {
	client    *Client
	dimension int
}

// NewRepository 创建向量仓储
func NewRepository(client *Client, dimension int) *Repository {
	if dimension <= 0 {
		dimension = DefaultVectorDimension
	}
	return &Repository{client: client, dimension: dimension}
}

// EnsureCollection 确保分片集合与索引可用（不存在则创建）。
// 约束：不会做 drop/rebuild 等破坏性操作。
func (r *Repository) EnsureCollection(ctx context.Context) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}

	exists, err := r.client.HasCollection(ctx, CollectionLibraryChunks)
	if err != nil {
		return err
	}
	if !exists {
		if err := r.createCollection(ctx); err != nil {
			return err
		}
		if err := r.createIndex(ctx); err != nil {
			return err
		}
	}

	// 尝试确保集合已加载（若已加载，Milvus 会返回成功）
	return r.client.LoadCollection(ctx, CollectionLibraryChunks)
}

func (r *Repository) createCollection(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "milvus.CreateCollection",
		trace.WithAttributes(attribute.String("collection", CollectionLibraryChunks)))
	defer span.End()

	schema := LibraryChunksSchema(r.dimension)
	schema.CollectionName = r.client.CollectionName(schema.CollectionName)

	if err := r.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func (r *Repository) createIndex(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "milvus.CreateIndex",
		trace.WithAttributes(attribute.String("collection", CollectionLibraryChunks)))
	defer span.End()

	idx, err := entity.NewIndexHNSW(
		entity.COSINE,
		r.client.config.HNSWM,
		r.client.config.HNSWEfConstruction,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	collName := r.client.CollectionName(CollectionLibraryChunks)
	if err := r.client.milvus.CreateIndex(ctx, collName, "vector", idx, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// Insert 插入文档分片
func (r *Repository) Insert(ctx context.Context, chunks []*rag.Chunk) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.Insert",
		trace.WithAttributes(attribute.Int("count", len(chunks))))
	defer span.End()

	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, len(chunks))
	vectors := make([][]float32, len(chunks))
	sources := make([]string, len(chunks))
	pages := make([]int64, len(chunks))
	indexes := make([]int64, len(chunks))
	batchIDs := make([]string, len(chunks))
	texts := make([]string, len(chunks))

	for i, c := range chunks {
		ids[i] = c.ID
		vectors[i] = c.Vector
		sources[i] = c.Source
		pages[i] = int64(c.Page)
		indexes[i] = int64(c.ChunkIndex)
		batchIDs[i] = c.BatchID
		texts[i] = c.Text
	}

	collName := r.client.CollectionName(CollectionLibraryChunks)
	_, err := r.client.milvus.Insert(ctx, collName, "",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnFloatVector("vector", r.dimension, vectors),
		entity.NewColumnVarChar("source", sources),
		entity.NewColumnInt64("page", pages),
		entity.NewColumnInt64("chunk_index", indexes),
		entity.NewColumnVarChar("batch_id", batchIDs),
		entity.NewColumnVarChar("text_content", texts),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	return nil
}

// DeleteBySource 删除指定来源文件的所有分片
func (r *Repository) DeleteBySource(ctx context.Context, source string) error {
	return r.deleteByExpr(ctx, "milvus.DeleteBySource",
		fmt.Sprintf(`source == "%s"`, escapeExprValue(source)))
}

// DeleteByBatch 删除指定摄取批次的所有分片
func (r *Repository) DeleteByBatch(ctx context.Context, batchID string) error {
	return r.deleteByExpr(ctx, "milvus.DeleteByBatch",
		fmt.Sprintf(`batch_id == "%s"`, escapeExprValue(batchID)))
}

func (r *Repository) deleteByExpr(ctx context.Context, spanName, expr string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, spanName,
		trace.WithAttributes(attribute.String("expr", expr)))
	defer span.End()

	// 集合尚未创建时没有可删的数据
	if has, err := r.client.HasCollection(ctx, CollectionLibraryChunks); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check collection: %w", err)
	} else if !has {
		return nil
	}

	collName := r.client.CollectionName(CollectionLibraryChunks)
	if err := r.client.milvus.Delete(ctx, collName, "", expr); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// Count 返回已索引的分片总数;集合不存在视为空索引
func (r *Repository) Count(ctx context.Context) (int64, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return 0, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.Count")
	defer span.End()

	has, err := r.client.HasCollection(ctx, CollectionLibraryChunks)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to check collection: %w", err)
	}
	if !has {
		return 0, nil
	}

	collName := r.client.CollectionName(CollectionLibraryChunks)
	stats, err := r.client.milvus.GetCollectionStatistics(ctx, collName)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to get collection statistics: %w", err)
	}
	count, err := strconv.ParseInt(stats["row_count"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse row count: %w", err)
	}

	span.SetAttributes(attribute.Int64("count", count))
	return count, nil
}

// Search 向量检索文档分片,返回结果携带向量用于上层重排
func (r *Repository) Search(ctx context.Context, params *rag.SearchParams) ([]*rag.ScoredChunk, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return nil, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.Search",
		trace.WithAttributes(
			attribute.Int("top_k", params.TopK),
			attribute.String("source", params.Source),
		))
	defer span.End()

	start := time.Now()
	results, err := r.search(ctx, params)
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.MilvusSearchTotal.WithLabelValues(CollectionLibraryChunks, status).Inc()
	metrics.MilvusSearchDuration.WithLabelValues(CollectionLibraryChunks).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("result_count", len(results)))
	return results, nil
}

func (r *Repository) search(ctx context.Context, params *rag.SearchParams) ([]*rag.ScoredChunk, error) {
	// 构建过滤表达式
	filter := ""
	if params.Source != "" {
		filter = fmt.Sprintf(`source == "%s"`, escapeExprValue(params.Source))
	}

	sp, err := entity.NewIndexHNSWSearchParam(128)
	if err != nil {
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	collName := r.client.CollectionName(CollectionLibraryChunks)
	results, err := r.client.milvus.Search(ctx,
		collName,
		nil,
		filter,
		[]string{"id", "source", "page", "chunk_index", "batch_id", "text_content", "vector"},
		[]entity.Vector{entity.FloatVector(params.QueryVector)},
		"vector",
		entity.COSINE,
		params.TopK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var chunks []*rag.ScoredChunk
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			sc := &rag.ScoredChunk{Score: float64(result.Scores[i])}

			if col, ok := result.Fields.GetColumn("id").(*entity.ColumnVarChar); ok {
				sc.ID = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("source").(*entity.ColumnVarChar); ok {
				sc.Source = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("page").(*entity.ColumnInt64); ok {
				sc.Page = int(col.Data()[i])
			}
			if col, ok := result.Fields.GetColumn("chunk_index").(*entity.ColumnInt64); ok {
				sc.ChunkIndex = int(col.Data()[i])
			}
			if col, ok := result.Fields.GetColumn("batch_id").(*entity.ColumnVarChar); ok {
				sc.BatchID = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("text_content").(*entity.ColumnVarChar); ok {
				sc.Text = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("vector").(*entity.ColumnFloatVector); ok {
				sc.Vector = col.Data()[i]
			}

			chunks = append(chunks, sc)
		}
	}
	return chunks, nil
}

// escapeExprValue 转义过滤表达式中的字符串字面量
func escapeExprValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `"`, `\"`)
}
