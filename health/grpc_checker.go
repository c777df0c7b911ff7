package health

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCChecker 返回 gRPC 依赖健康检查函数。
// service 为空时表示检查服务整体健康状态。
func GRPCChecker(addr, service string, opts ...grpc.DialOption) Checker {
	return func(ctx context.Context) error {
		if addr == "" {
			return errors.New("grpc health addr is empty")
		}
		dialOpts := opts
		if len(dialOpts) == 0 {
			dialOpts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
		}

		conn, err := grpc.NewClient(addr, dialOpts...)
		if err != nil {
			return fmt.Errorf("grpc dial failed: %w", err)
		}
		defer conn.Close()

		resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
		if err != nil {
			return fmt.Errorf("grpc health check failed: %w", err)
		}
		if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
			return fmt.Errorf("grpc health status: %s", resp.GetStatus().String())
		}
		return nil
	}
}
