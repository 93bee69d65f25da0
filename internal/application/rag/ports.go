package rag

import (
	"context"

	"github.com/cloudwego/eino/components/model"

	"library-qa-api/internal/domain/entity"
)

// VectorIndex 定义应用层对"向量存储/检索"的最小依赖（port）。
// 由基础设施层提供具体实现（例如 Milvus）。
type VectorIndex interface {
	EnsureCollection(ctx context.Context) error
	Insert(ctx context.Context, chunks []*Chunk) error
	DeleteBySource(ctx context.Context, source string) error
	DeleteByBatch(ctx context.Context, batchID string) error
	Count(ctx context.Context) (int64, error)
	Search(ctx context.Context, params *SearchParams) ([]*ScoredChunk, error)
}

// ChatModelFactory 提供默认 ChatModel；配置缺失时返回 ConfigurationError。
type ChatModelFactory interface {
	Default(ctx context.Context) (model.BaseChatModel, error)
}

// DocumentRegistry 摄取登记表（可选依赖；登记失败不影响摄取结果）
type DocumentRegistry interface {
	Record(ctx context.Context, rec *entity.DocumentRecord) error
	// MarkReplaced 将同名文件的历史登记记录标记为已替换,当前批次除外
	MarkReplaced(ctx context.Context, source, currentBatchID string) error
}
