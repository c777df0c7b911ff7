package app

import (
	"time"

	"github.com/wyfcoding/montecarlo/server"
)

// Option 配置 App。
type Option func(*options)

type options struct {
	servers         []server.Server
	hooks           []Hook
	shutdownTimeout time.Duration
}

// WithServer 添加需要随应用启动和关闭的服务器。
func WithServer(servers ...server.Server) Option {
	return func(o *options) {
		o.servers = append(o.servers, servers...)
	}
}

// WithHook 添加生命周期钩子，按注册顺序启动、逆序停止。
func WithHook(hooks ...Hook) Option {
	return func(o *options) {
		o.hooks = append(o.hooks, hooks...)
	}
}

// WithShutdownTimeout 设置优雅关闭的总超时。
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		o.shutdownTimeout = d
	}
}
