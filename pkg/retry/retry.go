// Package retry 提供针对外部依赖调用的有界退避重试
package retry

import (
	"context"
	"time"

	"library-qa-api/pkg/errors"
)

// Policy 重试策略
type Policy struct {
	// Attempts 最大尝试次数（含首次调用）
	Attempts int
	// Initial 首次重试前的等待时长
	Initial time.Duration
	// Max 单次等待时长上限
	Max time.Duration
	// Multiplier 指数退避倍率
	Multiplier float64
}

// DefaultPolicy 默认策略：最多 3 次尝试，500ms 起步指数退避
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		Initial:    500 * time.Millisecond,
		Max:        5 * time.Second,
		Multiplier: 2.0,
	}
}

func (p Policy) normalize() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.Initial <= 0 {
		p.Initial = 500 * time.Millisecond
	}
	if p.Max <= 0 {
		p.Max = 5 * time.Second
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2.0
	}
	return p
}

// Do 执行 fn，仅对瞬时故障（errors.IsTransient）重试。
// 配置类错误与业务错误立即返回，不消耗重试预算。
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	policy = policy.normalize()

	var lastErr error
	wait := policy.Initial

	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !errors.IsTransient(lastErr) {
			return lastErr
		}
		if attempt == policy.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(wait):
		}

		wait = time.Duration(float64(wait) * policy.Multiplier)
		if wait > policy.Max {
			wait = policy.Max
		}
	}
	return lastErr
}
