package server

import (
	"context"
	"time"
)

// DefaultShutdownTimeout 优雅关闭的默认等待时间。
const DefaultShutdownTimeout = 5 * time.Second

// Server 接口定义了一个通用的服务器行为契约。
// Start 阻塞运行直到 ctx 取消或出错，Stop 等待正在处理的请求完成。
type Server interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Options 服务器生命周期参数。
type Options struct {
	ShutdownTimeout time.Duration
}

func (o Options) shutdownTimeout() time.Duration {
	if o.ShutdownTimeout <= 0 {
		return DefaultShutdownTimeout
	}
	return o.ShutdownTimeout
}
