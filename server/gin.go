// Package server 提供了启动和管理 gRPC 和 HTTP 服务器的封装。
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/montecarlo/config"
	"github.com/wyfcoding/montecarlo/logging"
)

// GinServer 封装了标准的 `http.Server`，专门用于运行 Gin 引擎，并提供了优雅的启动和关闭功能。
type GinServer struct {
	server *http.Server
	logger *logging.Logger
	opts   Options
}

// NewGinServer 按 HTTP 配置创建服务器实例。
func NewGinServer(engine *gin.Engine, cfg config.ServerConfig, logger *logging.Logger, options ...Options) *GinServer {
	if logger == nil {
		logger = logging.Default().WithModule("http")
	}
	var opts Options
	if len(options) > 0 {
		opts = options[0]
	}
	h := cfg.HTTP
	return &GinServer{
		server: &http.Server{
			Addr:              net.JoinHostPort(h.Addr, fmt.Sprint(h.Port)),
			Handler:           engine,
			ReadTimeout:       h.ReadTimeout,
			ReadHeaderTimeout: h.ReadHeaderTimeout,
			WriteTimeout:      h.WriteTimeout,
			IdleTimeout:       h.IdleTimeout,
		},
		logger: logger,
		opts:   opts,
	}
}

// Addr 监听地址。
func (s *GinServer) Addr() string { return s.server.Addr }

// Start 启动 HTTP 服务器，ctx 取消时优雅关闭。
func (s *GinServer) Start(ctx context.Context) error {
	s.logger.Info("starting http server", "addr", s.server.Addr)

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("http server stopping due to context cancellation")
		return s.Stop(context.Background())
	case err := <-errChan:
		return err
	}
}

// Stop 在超时内等待现有请求完成。
func (s *GinServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping http server gracefully")
	ctx, cancel := context.WithTimeout(ctx, s.opts.shutdownTimeout())
	defer cancel()
	return s.server.Shutdown(ctx)
}
