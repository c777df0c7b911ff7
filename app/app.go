// Package app 装配全部组件并管理服务进程的生命周期。
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wyfcoding/montecarlo/logging"
	"golang.org/x/sync/errgroup"
)

const defaultShutdownTimeout = 10 * time.Second

// App 是应用程序的核心容器：先按序启动生命周期钩子，再并发运行所有服务器，
// 收到退出信号后停止服务器并逆序执行钩子的停止逻辑。
type App struct {
	name      string
	logger    *logging.Logger
	opts      options
	lifecycle *Lifecycle
}

// New 创建一个新的应用程序实例。
func New(name string, logger *logging.Logger, opts ...Option) *App {
	if logger == nil {
		logger = logging.Default().WithModule("app")
	}
	o := options{shutdownTimeout: defaultShutdownTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	lc := NewLifecycle(logger)
	for _, h := range o.hooks {
		lc.Append(h)
	}
	return &App{name: name, logger: logger, opts: o, lifecycle: lc}
}

// Run 阻塞运行直到收到 SIGINT/SIGTERM 或某个服务器失败。
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext 与 Run 相同，但由 ctx 控制退出。
func (a *App) RunContext(ctx context.Context) error {
	a.logger.Info("application starting", "name", a.name, "pid", os.Getpid())

	if err := a.lifecycle.Start(ctx); err != nil {
		a.shutdown()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range a.opts.servers {
		g.Go(func() error {
			return srv.Start(gctx)
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("server failed", "error", err)
	} else {
		err = nil
	}
	a.logger.Info("shutting down application", "name", a.name)
	if stopErr := a.shutdown(); err == nil {
		err = stopErr
	}
	if err == nil {
		a.logger.Info("application shut down gracefully")
	}
	return err
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.opts.shutdownTimeout)
	defer cancel()
	return a.lifecycle.Stop(ctx)
}
