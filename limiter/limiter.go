// Package limiter 提供按客户端划分的令牌桶限流与并发信号量.
package limiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter 限流器的通用行为.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// idleTTL 超过该时长未访问的客户端桶会被回收.
const idleTTL = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter 每个 key（通常是客户端 IP）一个令牌桶.
type KeyedLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*bucket
	sweptAt time.Time
	now     func() time.Time
}

// NewKeyedLimiter 每秒 r 个令牌，桶容量 b.
func NewKeyedLimiter(r float64, b int) *KeyedLimiter {
	if b <= 0 {
		b = 1
	}
	return &KeyedLimiter{
		limit:   rate.Limit(r),
		burst:   b,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow 从 key 对应的桶中取一个令牌.
func (l *KeyedLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1), nil
}

// Len 当前跟踪的客户端数.
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *KeyedLimiter) sweep(now time.Time) {
	if now.Sub(l.sweptAt) < idleTTL {
		return
	}
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > idleTTL {
			delete(l.buckets, k)
		}
	}
	l.sweptAt = now
}
