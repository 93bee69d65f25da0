// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/lib/pq"

	"library-qa-api/internal/domain/entity"
	apperrors "library-qa-api/pkg/errors"
)

// pgUniqueViolation PostgreSQL 唯一约束冲突的错误码
const pgUniqueViolation = "23505"

// DocumentRepository 文档登记仓储实现
type DocumentRepository struct {
	client *Client
}

// NewDocumentRepository 创建文档登记仓储
func NewDocumentRepository(client *Client) *DocumentRepository {
	return &DocumentRepository{client: client}
}

// Record 登记一次摄取
func (r *DocumentRepository) Record(ctx context.Context, rec *entity.DocumentRecord) error {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.Record")
	defer span.End()

	err := r.client.db.WithContext(ctx).Create(rec).Error
	if err != nil {
		span.RecordError(err)
		var pgErr *pq.Error
		if stderrors.As(err, &pgErr) && string(pgErr.Code) == pgUniqueViolation {
			return apperrors.Wrap(err, apperrors.CodeConflict, "ingestion batch already recorded")
		}
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to record ingestion")
	}
	return nil
}

// List 按摄取时间倒序返回登记记录
func (r *DocumentRepository) List(ctx context.Context, limit int) ([]*entity.DocumentRecord, error) {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.List")
	defer span.End()

	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var records []*entity.DocumentRecord
	err := r.client.db.WithContext(ctx).
		Order("ingested_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to list ingestions")
	}
	return records, nil
}

// MarkReplaced 将某来源的历史记录标记为已替换
func (r *DocumentRepository) MarkReplaced(ctx context.Context, source, currentBatchID string) error {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.MarkReplaced")
	defer span.End()

	err := r.client.db.WithContext(ctx).
		Model(&entity.DocumentRecord{}).
		Where("source = ? AND batch_id <> ?", source, currentBatchID).
		Update("status", entity.DocumentStatusReplaced).Error
	if err != nil {
		span.RecordError(err)
		return apperrors.Wrap(err, apperrors.CodeDatabaseError,
			fmt.Sprintf("failed to mark %s as replaced", source))
	}
	return nil
}
