// Package router 提供 HTTP 路由配置
package router

import (
	"library-qa-api/internal/interfaces/http/handler"
)

// RegisterRoutes 注册全部路由
func (r *Router) RegisterRoutes(
	healthHandler *handler.HealthHandler,
	libraryHandler *handler.LibraryHandler,
	chatHandler *handler.ChatHandler,
) {
	// 系统端点
	r.engine.GET("/health", healthHandler.Health)
	r.engine.GET("/ready", healthHandler.Ready)
	r.engine.GET("/live", healthHandler.Live)

	// Prometheus 指标端点
	if r.cfg.Observability.Metrics.Enabled {
		path := r.cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.engine.GET(path, metricsHandler())
	}

	// API v1 路由组
	v1 := r.engine.Group("/v1")
	{
		// 文档库
		documents := v1.Group("/documents")
		{
			documents.GET("", libraryHandler.List)
			documents.POST("/ingest", libraryHandler.Ingest)
		}

		// 摄取登记
		v1.GET("/ingestions", libraryHandler.Ingestions)

		// 问答
		v1.POST("/chat", chatHandler.Chat)

		// 原始文件下发
		v1.GET("/files/*path", libraryHandler.File)
	}
}
