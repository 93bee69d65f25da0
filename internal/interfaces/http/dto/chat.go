package dto

import (
	"fmt"
	"strings"

	"library-qa-api/internal/application/rag"
)

// ChatMessage 单条会话消息
type ChatMessage struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content"`
}

// ChatRequest 问答请求
type ChatRequest struct {
	// Message 当前用户问题
	Message string `json:"message" binding:"required"`
	// Source 非空时仅在该文件的分片中检索
	Source string `json:"source"`
	// History 此前的会话消息，按时间顺序
	History []ChatMessage `json:"history"`
}

// Validate 校验请求并规整为查询上下文
func (r *ChatRequest) Validate() (*rag.QueryContext, error) {
	if strings.TrimSpace(r.Message) == "" {
		return nil, fmt.Errorf("message must not be empty")
	}

	history := make([]rag.Message, 0, len(r.History))
	for i, m := range r.History {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != rag.RoleUser && role != rag.RoleAssistant {
			return nil, fmt.Errorf("history[%d]: role must be %q or %q", i, rag.RoleUser, rag.RoleAssistant)
		}
		history = append(history, rag.Message{Role: role, Content: m.Content})
	}

	return &rag.QueryContext{
		Question:     strings.TrimSpace(r.Message),
		SourceFilter: strings.TrimSpace(r.Source),
		History:      history,
	}, nil
}

// ChatResponse 问答响应
type ChatResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
	Cached  bool     `json:"cached,omitempty"`
}
