package handler

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"library-qa-api/internal/application/rag"
	"library-qa-api/internal/infrastructure/persistence/redis"
	"library-qa-api/internal/interfaces/http/dto"
	"library-qa-api/pkg/logger"
	"library-qa-api/pkg/metrics"
)

// ChatHandler 会话式问答处理器
type ChatHandler struct {
	engine   *rag.Engine
	cache    *redis.Cache
	cacheTTL time.Duration
}

// NewChatHandler 创建问答处理器;cache 允许为 nil（不缓存答案）
func NewChatHandler(engine *rag.Engine, cache *redis.Cache, cacheTTL time.Duration) *ChatHandler {
	return &ChatHandler{
		engine:   engine,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// Chat 回答一个问题。
// 仅对无历史的独立提问做答案缓存:带历史的问题答案依赖会话上下文,不可复用。
func (h *ChatHandler) Chat(c *gin.Context) {
	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "message is required")
		return
	}

	qc, err := req.Validate()
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()

	if h.cache == nil || h.cacheTTL <= 0 || len(qc.History) > 0 {
		if h.cache != nil {
			metrics.AnswerCacheHits.WithLabelValues("bypass").Inc()
		}
		answer, err := h.engine.Query(ctx, qc)
		if err != nil {
			writeError(c, err)
			return
		}
		dto.Success(c, dto.ChatResponse{Answer: answer.Text, Sources: answer.Sources})
		return
	}

	// Read-Through:singleflight 合并同一问题的并发未命中
	key := redis.BuildAnswerKey(qc.Question, qc.SourceFilter)
	var queryErr error
	cached := true
	raw, err := h.cache.GetOrLoadSafe(ctx, key, h.cacheTTL, func() (interface{}, error) {
		cached = false
		answer, err := h.engine.Query(ctx, qc)
		if err != nil {
			queryErr = err
			return nil, err
		}
		return answer, nil
	})
	if queryErr != nil {
		writeError(c, queryErr)
		return
	}
	if err != nil {
		// 缓存故障时降级为直查
		logger.Warn(ctx, "answer cache unavailable", "error", err.Error())
		answer, err := h.engine.Query(ctx, qc)
		if err != nil {
			writeError(c, err)
			return
		}
		dto.Success(c, dto.ChatResponse{Answer: answer.Text, Sources: answer.Sources})
		return
	}

	if cached {
		metrics.AnswerCacheHits.WithLabelValues("hit").Inc()
	} else {
		metrics.AnswerCacheHits.WithLabelValues("miss").Inc()
	}

	var answer rag.Answer
	if err := json.Unmarshal(raw, &answer); err != nil {
		logger.Warn(ctx, "failed to decode cached answer", "error", err.Error())
		dto.InternalError(c, "failed to decode answer")
		return
	}
	dto.Success(c, dto.ChatResponse{Answer: answer.Text, Sources: answer.Sources, Cached: cached})
}
