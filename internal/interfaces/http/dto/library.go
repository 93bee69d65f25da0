package dto

import (
	"time"

	"library-qa-api/internal/application/rag"
	"library-qa-api/internal/domain/entity"
)

// DocumentListResponse 文档库列表响应
type DocumentListResponse struct {
	Files []string `json:"files"`
	Count int      `json:"count"`
}

// IngestRequest 文档摄取请求
type IngestRequest struct {
	// Filename 库内相对路径
	Filename string `json:"filename" binding:"required"`
}

// IngestResponse 文档摄取响应
type IngestResponse struct {
	Source  string `json:"source"`
	BatchID string `json:"batch_id"`
	Pages   int    `json:"pages"`
	Chunks  int    `json:"chunks"`
}

// FromIngestReport 由摄取报告构建响应
func FromIngestReport(report *rag.IngestReport) IngestResponse {
	return IngestResponse{
		Source:  report.Source,
		BatchID: report.BatchID,
		Pages:   report.Pages,
		Chunks:  report.Chunks,
	}
}

// IngestionRecordResponse 摄取登记记录
type IngestionRecordResponse struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	BatchID    string    `json:"batch_id"`
	ChunkCount int       `json:"chunk_count"`
	Pages      int       `json:"pages"`
	Status     string    `json:"status"`
	IngestedAt time.Time `json:"ingested_at"`
}

// FromDocumentRecord 由登记实体构建响应
func FromDocumentRecord(rec *entity.DocumentRecord) IngestionRecordResponse {
	return IngestionRecordResponse{
		ID:         rec.ID,
		Source:     rec.Source,
		BatchID:    rec.BatchID,
		ChunkCount: rec.ChunkCount,
		Pages:      rec.Pages,
		Status:     rec.Status,
		IngestedAt: rec.IngestedAt,
	}
}
