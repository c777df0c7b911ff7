package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/wyfcoding/montecarlo/config"
	"github.com/wyfcoding/montecarlo/logging"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

// GRPCServer 封装了标准的 grpc.Server，提供了简化的生命周期管理逻辑。
type GRPCServer struct {
	server *grpc.Server
	logger *logging.Logger
	addr   string
	opts   Options
}

// NewGRPCServer 构造 gRPC 服务器，register 负责注册业务服务。
func NewGRPCServer(cfg config.ServerConfig, logger *logging.Logger, register func(*grpc.Server), interceptors []grpc.UnaryServerInterceptor, options ...Options) *GRPCServer {
	if logger == nil {
		logger = logging.Default().WithModule("grpc")
	}
	var opts Options
	if len(options) > 0 {
		opts = options[0]
	}

	grpcOpts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.KeepaliveParams(serverParams()),
		grpc.KeepaliveEnforcementPolicy(enforcementPolicy()),
	}
	if cfg.GRPC.MaxRecvMsgSize > 0 {
		grpcOpts = append(grpcOpts, grpc.MaxRecvMsgSize(cfg.GRPC.MaxRecvMsgSize))
	}
	if cfg.GRPC.MaxSendMsgSize > 0 {
		grpcOpts = append(grpcOpts, grpc.MaxSendMsgSize(cfg.GRPC.MaxSendMsgSize))
	}
	if len(interceptors) > 0 {
		grpcOpts = append(grpcOpts, grpc.ChainUnaryInterceptor(interceptors...))
	}

	s := grpc.NewServer(grpcOpts...)
	if register != nil {
		register(s)
	}
	reflection.Register(s)

	return &GRPCServer{
		server: s,
		addr:   net.JoinHostPort(cfg.GRPC.Addr, fmt.Sprint(cfg.GRPC.Port)),
		logger: logger,
		opts:   opts,
	}
}

// Addr 监听地址。
func (s *GRPCServer) Addr() string { return s.addr }

// Start 启动 TCP 监听并运行 gRPC 服务。
func (s *GRPCServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve 在给定监听器上运行，ctx 取消时优雅关闭。
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	s.logger.Info("starting grpc server", "addr", lis.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.server.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("grpc server stopping due to context cancellation")
		return s.Stop(context.Background())
	case err := <-errChan:
		return err
	}
}

// Stop 执行 gRPC 服务器的优雅关停，超时后强制停止。
func (s *GRPCServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping grpc server gracefully")

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	timer := time.NewTimer(s.opts.shutdownTimeout())
	defer timer.Stop()

	select {
	case <-stopped:
		return nil
	case <-timer.C:
		s.logger.Warn("grpc server graceful stop timeout, forcing stop")
		s.server.Stop()
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return ctx.Err()
	}
}
