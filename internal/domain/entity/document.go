// Package entity 提供领域实体定义
package entity

import (
	"time"
)

// 摄取状态
const (
	DocumentStatusIngested = "ingested"
	DocumentStatusReplaced = "replaced"
)

// DocumentRecord 文档摄取登记记录。
// 同一 source 可以存在多条记录（重复摄取默认追加分片）。
type DocumentRecord struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Source     string    `gorm:"type:varchar(512);index" json:"source"`
	BatchID    string    `gorm:"type:varchar(64);uniqueIndex" json:"batch_id"`
	ChunkCount int       `json:"chunk_count"`
	Pages      int       `json:"pages"`
	Status     string    `gorm:"type:varchar(32)" json:"status"`
	IngestedAt time.Time `json:"ingested_at"`
}

// TableName 指定表名
func (DocumentRecord) TableName() string {
	return "document_records"
}
