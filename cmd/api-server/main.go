// Package main 文档库问答服务入口
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"library-qa-api/internal/application/rag"
	"library-qa-api/internal/config"
	"library-qa-api/internal/domain/entity"
	"library-qa-api/internal/infrastructure/embedding"
	"library-qa-api/internal/infrastructure/llm"
	"library-qa-api/internal/infrastructure/persistence/milvus"
	"library-qa-api/internal/infrastructure/persistence/postgres"
	"library-qa-api/internal/infrastructure/persistence/redis"
	"library-qa-api/internal/infrastructure/storage"
	"library-qa-api/internal/interfaces/http/handler"
	"library-qa-api/internal/interfaces/http/middleware"
	"library-qa-api/internal/interfaces/http/router"
	"library-qa-api/pkg/logger"
	"library-qa-api/pkg/retry"
	"library-qa-api/pkg/tracer"

	"github.com/joho/godotenv"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件（如果存在）
	_ = godotenv.Load()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx := context.Background()
	log := logger.FromContext(ctx)
	log.Info("starting api-server",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	// 初始化追踪
	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		log.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	// 本地文档库
	library, err := storage.NewLocalLibrary(cfg.Library.Root, cfg.Library.Extensions)
	if err != nil {
		logger.Fatal(ctx, "failed to open library", err)
	}

	// Milvus（必需）
	milvusClient, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		logger.Fatal(ctx, "failed to connect milvus", err)
	}
	defer milvusClient.Close()
	index := milvus.NewRepository(milvusClient, cfg.Embedding.Dimension)

	// Redis（可选:答案缓存与限流）
	var redisClient *redis.Client
	var answerCache *redis.Cache
	var limiter middleware.RateLimiter
	if cfg.Cache.Redis.Enabled {
		redisClient, err = redis.NewClient(&cfg.Cache.Redis)
		if err != nil {
			log.Warn("redis unavailable, answer cache and rate limiting disabled", "error", err)
		} else {
			defer redisClient.Close()
			answerCache = redis.NewCache(redisClient)
			limiter = redis.NewRateLimiter(redisClient)
		}
	}

	// Postgres（可选:摄取登记表）
	var pgClient *postgres.Client
	var registry *postgres.DocumentRepository
	var pipelineRegistry rag.DocumentRegistry
	if cfg.Database.Postgres.Enabled {
		pgClient, err = postgres.NewClient(&cfg.Database.Postgres)
		if err != nil {
			log.Warn("postgres unavailable, ingestion registry disabled", "error", err)
		} else {
			defer pgClient.Close()
			if err := pgClient.Migrate(&entity.DocumentRecord{}); err != nil {
				logger.Fatal(ctx, "failed to migrate database", err)
			}
			registry = postgres.NewDocumentRepository(pgClient)
			pipelineRegistry = registry
		}
	}

	// Embedder（配置缺失时不致命:运行期降级处理）
	embedder, err := embedding.NewEinoEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		log.Warn("embedder not available, ingest and query will degrade", "error", err)
		embedder = nil
	}

	// LLM 工厂（惰性创建,配置缺失在查询期降级）
	llmFactory := llm.NewEinoFactory(cfg)

	// 应用层
	retryPolicy := retry.Policy{
		Attempts:   cfg.Retry.Attempts,
		Initial:    cfg.Retry.InitialInterval,
		Max:        cfg.Retry.MaxInterval,
		Multiplier: cfg.Retry.Multiplier,
	}
	splitter := rag.NewSplitter(cfg.Ingestion.ChunkSize, cfg.Ingestion.ChunkOverlap)
	pipeline := rag.NewPipeline(embedder, index, pipelineRegistry, splitter, rag.PipelineOptions{
		BatchSize:         cfg.Embedding.BatchSize,
		MaxConcurrency:    cfg.Embedding.MaxConcurrency,
		ReplaceOnReingest: cfg.Ingestion.ReplaceOnReingest,
		RetryPolicy:       &retryPolicy,
	})
	engine := rag.NewEngine(embedder, index, llmFactory, rag.EngineOptions{
		TopK:            cfg.Retrieval.TopK,
		FetchK:          cfg.Retrieval.FetchK,
		MMRLambda:       cfg.Retrieval.MMRLambda,
		GenerateTimeout: cfg.Retrieval.GenerateTimeout,
		RetryPolicy:     &retryPolicy,
		ProviderName:    cfg.LLM.DefaultProvider,
	})

	// HTTP 层
	healthHandler := handler.NewHealthHandler(milvusClient, redisClient, pgClient)
	libraryHandler := handler.NewLibraryHandler(library, pipeline, registry, answerCache)
	chatHandler := handler.NewChatHandler(engine, answerCache, cfg.Retrieval.AnswerCacheTTL)

	r := router.New(cfg, limiter)
	r.RegisterRoutes(healthHandler, libraryHandler, chatHandler)

	// 创建 HTTP 服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}

	// 启动服务器
	go func() {
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
