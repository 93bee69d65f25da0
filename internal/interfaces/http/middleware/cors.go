// Package middleware 提供 HTTP 中间件
package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// CORS 跨域中间件,面向浏览器端的文档阅读器。
// 本服务只暴露查询与提交两类路由,默认方法集合不含 PUT/DELETE。
func CORS(cfg CORSConfig) gin.HandlerFunc {
	origins := orDefault(cfg.AllowedOrigins, []string{"*"})
	methods := orDefault(cfg.AllowedMethods, []string{"GET", "POST", "OPTIONS"})
	headers := orDefault(cfg.AllowedHeaders, []string{"Origin", "Content-Type", "Accept", "X-Request-ID"})

	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     methods,
		AllowHeaders:     headers,
		ExposeHeaders:    []string{"X-Request-ID", "X-Trace-ID", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func orDefault(vals, fallback []string) []string {
	if len(vals) == 0 {
		return fallback
	}
	return vals
}
