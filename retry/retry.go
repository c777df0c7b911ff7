// Package retry 提供指数退避重试，供定时流水线在瞬时故障时使用.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/wyfcoding/montecarlo/xerrors"
)

// Config 重试策略.
type Config struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Jitter         float64
	MaxRetries     int
}

// DefaultConfig 默认三次重试，100ms 起步，上限 2s.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.1,
	}
}

// Do 对任意错误重试.
func Do(ctx context.Context, fn func() error, cfg Config) error {
	return If(ctx, fn, func(error) bool { return true }, cfg)
}

// If 仅在 shouldRetry 返回 true 时重试.
func If(ctx context.Context, fn func() error, shouldRetry func(error) bool, cfg Config) error {
	if cfg.MaxRetries <= 0 {
		return fn()
	}

	var lastErr error
	backoff := cfg.InitialBackoff
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == cfg.MaxRetries || !shouldRetry(lastErr) {
			return lastErr
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", errors.Join(ctx.Err(), lastErr))
		case <-time.After(backoff):
		}

		next := float64(backoff) * cfg.Multiplier
		if cfg.Jitter > 0 {
			next += (rand.Float64()*2 - 1) * cfg.Jitter * next
		}
		backoff = time.Duration(next)
		if cfg.MaxBackoff > 0 {
			backoff = min(backoff, cfg.MaxBackoff)
		}
	}
	return lastErr
}

// Transient 参数错误与取消不重试，其余视为瞬时故障.
func Transient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if e, ok := xerrors.FromError(err); ok && e.Type == xerrors.ErrInvalidArg {
		return false
	}
	return true
}
