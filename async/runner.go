// Package async 提供带 panic 恢复的 goroutine 启动工具.
package async

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/wyfcoding/montecarlo/logging"
)

// ErrPanicRecovered 表示异步任务中恢复的 panic。
var ErrPanicRecovered = errors.New("async task panic recovered")

func recovered(rec any) error {
	err := fmt.Errorf("%w: %v", ErrPanicRecovered, rec)
	logging.Default().Error("async task panic recovered", "error", err, "stack", string(debug.Stack()))
	return err
}

// SafeGo 启动 goroutine，panic 会被记录而不会使进程退出。
func SafeGo(fn func()) {
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				recovered(rec)
			}
		}()
		fn()
	}()
}

// SafeGoContext 与 SafeGo 相同，但将 ctx 传给 fn。
func SafeGoContext(ctx context.Context, fn func(ctx context.Context)) {
	SafeGo(func() { fn(ctx) })
}

// RunGroup 类似于 errgroup，任务中的 panic 会转换为错误返回。
type RunGroup struct {
	err     error
	wg      sync.WaitGroup
	errOnce sync.Once
}

// Go 在组中启动一个任务。
func (g *RunGroup) Go(fn func() error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		var err error
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					err = recovered(rec)
				}
			}()
			err = fn()
		}()
		if err != nil {
			g.errOnce.Do(func() { g.err = err })
		}
	}()
}

// Wait 等待所有任务完成，返回第一个错误。
func (g *RunGroup) Wait() error {
	g.wg.Wait()
	return g.err
}
