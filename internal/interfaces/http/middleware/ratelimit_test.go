package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type stubLimiter struct {
	allowed   bool
	remaining int
}

func (s *stubLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return s.allowed, nil
}

func (s *stubLimiter) Remaining(context.Context, string, int, time.Duration) (int, error) {
	return s.remaining, nil
}

func newRateLimitedRouter(cfg RateLimitConfig, limiter RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(cfg, limiter))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestRateLimitSetsQuotaHeaders(t *testing.T) {
	cfg := RateLimitConfig{Enabled: true, RequestsPerSecond: 5}
	r := newRateLimitedRouter(cfg, &stubLimiter{allowed: true, remaining: 4})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("X-RateLimit-Limit"); got != "5" {
		t.Errorf("X-RateLimit-Limit = %q, want 5", got)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "4" {
		t.Errorf("X-RateLimit-Remaining = %q, want 4", got)
	}
}

func TestRateLimitRejectsWhenExhausted(t *testing.T) {
	cfg := RateLimitConfig{Enabled: true, RequestsPerSecond: 5}
	r := newRateLimitedRouter(cfg, &stubLimiter{allowed: false, remaining: 0})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", got)
	}
}

func TestRateLimitDisabledPassesThrough(t *testing.T) {
	r := newRateLimitedRouter(RateLimitConfig{Enabled: false}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("X-RateLimit-Limit"); got != "" {
		t.Errorf("unexpected quota header %q on disabled limiter", got)
	}
}
