package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/allegro/bigcache/v3"
	"github.com/wyfcoding/montecarlo/config"
	"github.com/wyfcoding/montecarlo/xerrors"
)

// BigCache 基于 bigcache 的 Cache 实现。所有条目共享同一 TTL（LifeWindow）。
type BigCache struct {
	cache  *bigcache.BigCache
	prefix string
}

// NewBigCache 按配置创建缓存.
func NewBigCache(cfg config.CacheConfig) (*BigCache, error) {
	life := cfg.LifeWindow
	if life <= 0 {
		life = DefaultLifeWindow
	}
	bc := bigcache.DefaultConfig(life)
	if cfg.CleanWindow > 0 {
		bc.CleanWindow = cfg.CleanWindow
	}
	if cfg.Shards > 0 {
		bc.Shards = cfg.Shards
	}
	if cfg.MaxEntrySize > 0 {
		bc.MaxEntrySize = cfg.MaxEntrySize
	}
	bc.HardMaxCacheSize = cfg.HardMaxCacheSize
	bc.Verbose = false

	c, err := bigcache.New(context.Background(), bc)
	if err != nil {
		return nil, fmt.Errorf("init bigcache failed: %w", err)
	}
	slog.Info("result cache initialized", "life_window", life, "shards", bc.Shards, "max_mb", bc.HardMaxCacheSize)
	return &BigCache{cache: c, prefix: cfg.Prefix}, nil
}

// Get 读取缓存.
func (c *BigCache) Get(_ context.Context, key string, value any) error {
	data, err := c.cache.Get(c.prefix + key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return xerrors.ErrCacheMiss.WithDetail("key %s", key)
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, value)
}

// Set 写入缓存.
func (c *BigCache) Set(_ context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.cache.Set(c.prefix+key, data)
}

// Delete 删除键，不存在的键忽略.
func (c *BigCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		if err := c.cache.Delete(c.prefix + key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
			return err
		}
	}
	return nil
}

// Len 当前条目数.
func (c *BigCache) Len() int {
	return c.cache.Len()
}

// Close 释放后台清理协程.
func (c *BigCache) Close() error {
	return c.cache.Close()
}
