package rag

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/schema"

	"library-qa-api/pkg/errors"
	"library-qa-api/pkg/logger"
	"library-qa-api/pkg/metrics"
	"library-qa-api/pkg/retry"
)

const defaultGenerateTimeout = 60 * time.Second

// Engine 会话式检索问答引擎
//
// 除空问题外,Query 不向调用方返回错误:链路内部的任何故障都被吸收
// 为降级答复,保证问答接口对用户始终可用。
type Engine struct {
	embedder        embedding.Embedder
	index           VectorIndex
	llm             ChatModelFactory
	topK            int
	fetchK          int
	mmrLambda       float64
	generateTimeout time.Duration
	policy          retry.Policy
	provider        string
}

// EngineOptions Engine 的可选参数
type EngineOptions struct {
	TopK            int
	FetchK          int
	MMRLambda       float64
	GenerateTimeout time.Duration
	RetryPolicy     *retry.Policy
	ProviderName    string
}

// NewEngine 创建问答引擎；embedder 允许为 nil,在运行期降级处理
func NewEngine(embedder embedding.Embedder, index VectorIndex, llm ChatModelFactory, opts EngineOptions) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	if opts.FetchK <= 0 {
		opts.FetchK = defaultFetchK
	}
	if opts.MMRLambda <= 0 || opts.MMRLambda > 1 {
		opts.MMRLambda = defaultMMRLambda
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = defaultGenerateTimeout
	}
	policy := retry.DefaultPolicy()
	if opts.RetryPolicy != nil {
		policy = *opts.RetryPolicy
	}
	if opts.ProviderName == "" {
		opts.ProviderName = "default"
	}
	return &Engine{
		embedder:        embedder,
		index:           index,
		llm:             llm,
		topK:            opts.TopK,
		fetchK:          opts.FetchK,
		mmrLambda:       opts.MMRLambda,
		generateTimeout: opts.GenerateTimeout,
		policy:          policy,
		provider:        opts.ProviderName,
	}
}

// Query 回答一个问题
func (e *Engine) Query(ctx context.Context, qc *QueryContext) (*Answer, error) {
	if qc == nil || strings.TrimSpace(qc.Question) == "" {
		return nil, errors.New(errors.CodeInvalidParam, "question must not be empty")
	}

	start := time.Now()
	answer, status := e.query(ctx, qc)
	metrics.QueryTotal.WithLabelValues(status).Inc()
	metrics.QueryDuration.Observe(time.Since(start).Seconds())
	return answer, nil
}

func (e *Engine) query(ctx context.Context, qc *QueryContext) (*Answer, string) {
	// 1. 空索引守卫:固定答复,不触发生成调用
	count, err := e.index.Count(ctx)
	if err != nil {
		return e.degraded(ctx, errors.Wrap(err, errors.CodeVectorDBError, "failed to count indexed chunks"))
	}
	if count == 0 {
		return &Answer{Text: EmptyStoreAnswer, Sources: []string{}}, "empty_store"
	}

	// 2. 历史配对归一化
	turns := NormalizeHistory(qc.History)

	// 3. 问题向量化
	queryVector, err := e.embedQuestion(ctx, qc.Question)
	if err != nil {
		return e.degraded(ctx, err)
	}

	// 4. 召回 + MMR 重排
	hits, err := e.index.Search(ctx, &SearchParams{
		QueryVector: queryVector,
		TopK:        e.fetchK,
		Source:      qc.SourceFilter,
	})
	if err != nil {
		return e.degraded(ctx, errors.Wrap(err, errors.CodeVectorDBError, "vector search failed"))
	}
	selected := mmrSelect(queryVector, hits, e.topK, e.mmrLambda)

	// 5. 生成
	messages := BuildMessages(selected, turns, qc.Question)
	completion, err := e.generate(ctx, messages)
	if err != nil {
		return e.degraded(ctx, err)
	}

	return &Answer{Text: completion, Sources: ExtractSources(selected)}, "answered"
}

func (e *Engine) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	if e.embedder == nil {
		return nil, errors.New(errors.CodeConfiguration, "embedding provider is not configured").
			WithDetail("set embedding.api_key and embedding.endpoint in the configuration")
	}
	var vectors [][]float64
	err := retry.Do(ctx, e.policy, func(ctx context.Context) error {
		var embedErr error
		vectors, embedErr = e.embedder.EmbedStrings(ctx, []string{question})
		return classifyProviderError(embedErr, errors.CodeEmbeddingFailed, "embedding request failed")
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, errors.New(errors.CodeEmbeddingFailed, "embedding provider returned no vector")
	}
	out := make([]float32, len(vectors[0]))
	for i, v := range vectors[0] {
		out[i] = float32(v)
	}
	return out, nil
}

func (e *Engine) generate(ctx context.Context, messages []*schema.Message) (string, error) {
	cm, err := e.llm.Default(ctx)
	if err != nil {
		return "", err
	}

	var completion string
	err = retry.Do(ctx, e.policy, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, e.generateTimeout)
		defer cancel()

		callStart := time.Now()
		resp, genErr := cm.Generate(callCtx, messages)
		metrics.LLMCallDuration.WithLabelValues(e.provider).Observe(time.Since(callStart).Seconds())
		if genErr != nil {
			metrics.LLMCallTotal.WithLabelValues(e.provider, "failure").Inc()
			return classifyProviderError(genErr, errors.CodeGenerationFailed, "chat completion failed")
		}

		metrics.LLMCallTotal.WithLabelValues(e.provider, "success").Inc()
		completion = strings.TrimSpace(resp.Content)
		if completion == "" {
			return errors.New(errors.CodeGenerationFailed, "chat model returned an empty completion")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return completion, nil
}

// degraded 将内部故障吸收为降级答复,配置类错误在答复中指明缺失的设置
func (e *Engine) degraded(ctx context.Context, err error) (*Answer, string) {
	logger.Error(ctx, "query degraded", err)

	if errors.HasCode(err, errors.CodeConfiguration) {
		appErr := errors.AsAppError(err)
		text := fmt.Sprintf("The assistant is not fully configured: %s.", appErr.Message)
		if appErr.Detail != "" {
			text = fmt.Sprintf("%s %s.", text, strings.TrimSuffix(appErr.Detail, "."))
		}
		return &Answer{Text: text, Sources: []string{}}, "degraded"
	}
	return &Answer{Text: degradedAnswer, Sources: []string{}}, "degraded"
}

// classifyProviderError 甄别外部模型服务错误:限流/超时/连接类故障标记
// 为瞬时错误以进入重试,其余按给定错误码包装
func classifyProviderError(err error, code errors.ErrorCode, message string) error {
	if err == nil {
		return nil
	}
	if errors.IsAppError(err) {
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) || isTransientMessage(err.Error()) {
		return errors.Wrap(err, errors.CodeProviderTransient, message)
	}
	return errors.Wrap(err, code, message)
}

func isTransientMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, marker := range []string{
		"rate limit",
		"too many requests",
		"timeout",
		"timed out",
		"connection refused",
		"connection reset",
		"temporarily unavailable",
		"503",
		"429",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
