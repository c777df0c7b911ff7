package app

import (
	"context"
	"sync"

	"github.com/wyfcoding/montecarlo/logging"
)

// Hook 定义了生命周期钩子，包含启动和停止逻辑
type Hook struct {
	Name    string
	OnStart func(ctx context.Context) error
	OnStop  func(ctx context.Context) error
}

// Lifecycle 管理应用程序中多个组件的生命周期
type Lifecycle struct {
	logger  *logging.Logger
	mu      sync.Mutex
	hooks   []Hook
	started int
	running bool
}

// NewLifecycle 创建一个新的生命周期管理器
func NewLifecycle(logger *logging.Logger) *Lifecycle {
	if logger == nil {
		logger = logging.Default().WithModule("lifecycle")
	}
	return &Lifecycle{logger: logger}
}

// Append 添加一个生命周期钩子
func (l *Lifecycle) Append(hook Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, hook)
}

// Start 按顺序启动所有组件，遇到第一个错误即返回。
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = true
	for _, hook := range l.hooks[l.started:] {
		if hook.OnStart != nil {
			l.logger.Info("lifecycle: starting component", "name", hook.Name)
			if err := hook.OnStart(ctx); err != nil {
				l.logger.Error("lifecycle: failed to start component", "name", hook.Name, "error", err)
				return err
			}
		}
		l.started++
	}
	return nil
}

// Stop 以相反的顺序停止所有组件。
// 启动失败的组件及其后的组件不会被停止；未调用 Start 时只执行 OnStop 清理。
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.hooks)
	if l.running {
		n = l.started
	}

	var firstErr error
	for i := n - 1; i >= 0; i-- {
		hook := l.hooks[i]
		if hook.OnStop != nil {
			l.logger.Info("lifecycle: stopping component", "name", hook.Name)
			if err := hook.OnStop(ctx); err != nil {
				l.logger.Error("lifecycle: failed to stop component", "name", hook.Name, "error", err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}
	l.hooks = l.hooks[n:]
	l.started, l.running = 0, false
	return firstErr
}
