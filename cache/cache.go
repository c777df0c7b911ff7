// Package cache 提供进程内结果缓存，底层使用 allegro/bigcache.
package cache

import (
	"context"
	"time"
)

// Cache 结果缓存抽象，值以 JSON 存储.
type Cache interface {
	// Get 读取并反序列化到 value（必须为指针），未命中返回 xerrors.ErrCacheMiss.
	Get(ctx context.Context, key string, value any) error
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, keys ...string) error
	Len() int
	Close() error
}

// DefaultLifeWindow 未配置时的过期时间.
const DefaultLifeWindow = 10 * time.Minute
