package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"library-qa-api/internal/application/rag"
	"library-qa-api/internal/infrastructure/persistence/postgres"
	"library-qa-api/internal/infrastructure/persistence/redis"
	"library-qa-api/internal/infrastructure/storage"
	"library-qa-api/internal/interfaces/http/dto"
	"library-qa-api/pkg/logger"
)

// LibraryHandler 文档库处理器:列表、摄取与文件下发
type LibraryHandler struct {
	library  *storage.LocalLibrary
	pipeline *rag.Pipeline
	registry *postgres.DocumentRepository
	cache    *redis.Cache
}

// NewLibraryHandler 创建文档库处理器;registry 与 cache 允许为 nil
func NewLibraryHandler(library *storage.LocalLibrary, pipeline *rag.Pipeline, registry *postgres.DocumentRepository, cache *redis.Cache) *LibraryHandler {
	return &LibraryHandler{
		library:  library,
		pipeline: pipeline,
		registry: registry,
		cache:    cache,
	}
}

// List 列出库内全部可摄取文档
func (h *LibraryHandler) List(c *gin.Context) {
	files, err := h.library.List(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list library", err)
		dto.InternalError(c, "failed to list library")
		return
	}
	dto.Success(c, dto.DocumentListResponse{Files: files, Count: len(files)})
}

// Ingest 摄取一个库内文档
func (h *LibraryHandler) Ingest(c *gin.Context) {
	var req dto.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "filename is required")
		return
	}

	abs, err := h.library.Resolve(req.Filename)
	if err != nil {
		writeError(c, err)
		return
	}

	report, err := h.pipeline.Ingest(c.Request.Context(), abs)
	if err != nil {
		writeError(c, err)
		return
	}

	// 新内容入库后,已缓存的答案可能过期
	if h.cache != nil {
		if err := h.cache.InvalidateAnswers(c.Request.Context()); err != nil {
			logger.Warn(c.Request.Context(), "failed to invalidate answer cache", "error", err.Error())
		}
	}

	dto.Created(c, dto.FromIngestReport(report))
}

// Ingestions 列出摄取登记记录
func (h *LibraryHandler) Ingestions(c *gin.Context) {
	if h.registry == nil {
		dto.Success(c, []dto.IngestionRecordResponse{})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	records, err := h.registry.List(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]dto.IngestionRecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, dto.FromDocumentRecord(rec))
	}
	dto.Success(c, out)
}

// File 下发库内原始文件;越界路径一律 404
func (h *LibraryHandler) File(c *gin.Context) {
	rel := c.Param("path")
	abs, err := h.library.Resolve(rel)
	if err != nil {
		dto.NotFound(c, "document not found")
		return
	}
	c.File(abs)
}
