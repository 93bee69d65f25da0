package embedding

import (
	"context"
	"fmt"

	"library-qa-api/internal/config"
	"library-qa-api/pkg/errors"

	"github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"
)

// NewEinoEmbedder 创建基于 Eino 的 Embedder
func NewEinoEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (embedding.Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New(errors.CodeConfiguration, "embedding provider is not configured").
			WithDetail("set embedding.api_key in the configuration")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New(errors.CodeConfiguration, "embedding endpoint is required").
			WithDetail("set embedding.endpoint in the configuration")
	}

	// 使用 Eino 的 OpenAI 适配器
	embedder, err := openai.NewEmbedder(ctx, &openai.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.Endpoint,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino embedder: %w", err)
	}

	return embedder, nil
}
