package limiter

import (
	"context"
	"errors"
	"log/slog"
)

// ErrConcurrencyLimit 表示并发上限已触发。
var ErrConcurrencyLimit = errors.New("concurrency limit exceeded")

// SemaphoreLimiter 限制同时进行的模拟数量，max <= 0 表示不限。
type SemaphoreLimiter struct {
	sem chan struct{}
}

// NewSemaphoreLimiter 创建并发信号量。
func NewSemaphoreLimiter(max int) *SemaphoreLimiter {
	if max <= 0 {
		return &SemaphoreLimiter{}
	}
	return &SemaphoreLimiter{sem: make(chan struct{}, max)}
}

// Acquire 获取一个并发令牌，ctx 结束时放弃。
func (l *SemaphoreLimiter) Acquire(ctx context.Context) error {
	if l == nil || l.sem == nil {
		return nil
	}
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return errors.Join(ErrConcurrencyLimit, ctx.Err())
	}
}

// Release 释放一个并发令牌。
func (l *SemaphoreLimiter) Release() {
	if l == nil || l.sem == nil {
		return
	}
	select {
	case <-l.sem:
	default:
		slog.Warn("concurrency limiter release without acquire")
	}
}
