package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wyfcoding/montecarlo/config"
	"github.com/wyfcoding/montecarlo/xerrors"
)

type entry struct {
	VaR  float64 `json:"var"`
	Runs int     `json:"runs"`
}

func TestBigCacheRoundTrip(t *testing.T) {
	c, err := NewBigCache(config.CacheConfig{Prefix: "t:", LifeWindow: time.Minute, Shards: 16})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx := context.Background()

	var got entry
	if err := c.Get(ctx, "a", &got); !errors.Is(err, xerrors.ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}

	if err := c.Set(ctx, "a", entry{VaR: 12.5, Runs: 3}); err != nil {
		t.Fatal(err)
	}
	if err := c.Get(ctx, "a", &got); err != nil {
		t.Fatal(err)
	}
	if got.VaR != 12.5 || got.Runs != 3 {
		t.Errorf("got %+v", got)
	}
	if c.Len() != 1 {
		t.Errorf("len = %d", c.Len())
	}

	if err := c.Delete(ctx, "a", "missing"); err != nil {
		t.Fatal(err)
	}
	if err := c.Get(ctx, "a", &got); !errors.Is(err, xerrors.ErrCacheMiss) {
		t.Errorf("expected miss after delete, got %v", err)
	}
}
