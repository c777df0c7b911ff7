// Package health 提供依赖健康检查：行情文件、报告目录、结果缓存与远端 HTTP/gRPC 服务。
package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/wyfcoding/montecarlo/cache"
)

// Checker 定义健康检查函数原型。
type Checker func(ctx context.Context) error

// 状态取值。
const (
	StatusUp   = "UP"
	StatusDown = "DOWN"
)

const defaultCheckTimeout = 2 * time.Second

// Registry 维护命名检查项，可并发调用。
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	timeout  time.Duration
}

// NewRegistry 创建检查注册表，timeout 为单项检查超时。
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &Registry{checkers: make(map[string]Checker), timeout: timeout}
}

// Register 注册或替换检查项。
func (r *Registry) Register(name string, c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = c
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.checkers))
	for n := range r.checkers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Report 聚合检查结果。
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Healthy 全部检查通过时为 true。
func (r Report) Healthy() bool { return r.Status == StatusUp }

// Run 并发执行所有检查项。
func (r *Registry) Run(ctx context.Context) Report {
	r.mu.RLock()
	names := r.names()
	checks := make([]Checker, len(names))
	for i, n := range names {
		checks[i] = r.checkers[n]
	}
	r.mu.RUnlock()

	results := make([]error, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			results[i] = c(cctx)
		}()
	}
	wg.Wait()

	rep := Report{Status: StatusUp, Checks: make(map[string]string, len(names))}
	for i, n := range names {
		if results[i] != nil {
			rep.Status = StatusDown
			rep.Checks[n] = results[i].Error()
			continue
		}
		rep.Checks[n] = StatusUp
	}
	return rep
}

// FileChecker 检查行情数据文件存在且可读。
func FileChecker(path string) Checker {
	return func(context.Context) error {
		if path == "" {
			return errors.New("data file path is empty")
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fmt.Errorf("%s is a directory", path)
		}
		return nil
	}
}

// DirWritableChecker 检查报告目录可写。
func DirWritableChecker(dir string) Checker {
	return func(context.Context) error {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		f, err := os.CreateTemp(dir, ".healthcheck-*")
		if err != nil {
			return err
		}
		name := f.Name()
		f.Close()
		return os.Remove(name)
	}
}

// CacheChecker 以一次写读探测结果缓存。
func CacheChecker(c cache.Cache) Checker {
	return func(ctx context.Context) error {
		if c == nil {
			return errors.New("cache is nil")
		}
		const key = "__health__"
		if err := c.Set(ctx, key, time.Now().Unix()); err != nil {
			return err
		}
		var v int64
		if err := c.Get(ctx, key, &v); err != nil {
			return err
		}
		return c.Delete(ctx, key)
	}
}

// HTTPChecker 返回 HTTP 依赖健康检查函数。
func HTTPChecker(url string) Checker {
	return func(ctx context.Context) error {
		if url == "" {
			return errors.New("health check url is empty")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("http health check status: %d", resp.StatusCode)
		}
		return nil
	}
}
