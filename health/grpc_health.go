package health

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// GRPCHealthServer 基于 Registry 的 gRPC Health 实现。
type GRPCHealthServer struct {
	grpc_health_v1.UnimplementedHealthServer
	service  string
	registry *Registry
}

// NewGRPCHealthServer 创建 gRPC Health 服务实例。
func NewGRPCHealthServer(service string, registry *Registry) *GRPCHealthServer {
	return &GRPCHealthServer{service: service, registry: registry}
}

// RegisterGRPCHealthServer 注册 gRPC Health 服务。
func RegisterGRPCHealthServer(s *grpc.Server, service string, registry *Registry) {
	grpc_health_v1.RegisterHealthServer(s, NewGRPCHealthServer(service, registry))
}

func (g *GRPCHealthServer) status(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if g.registry.Run(ctx).Healthy() {
		return grpc_health_v1.HealthCheckResponse_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_NOT_SERVING
}

// Check 执行健康检查并返回服务状态。
func (g *GRPCHealthServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	if req != nil && req.Service != "" && g.service != "" && req.Service != g.service {
		return &grpc_health_v1.HealthCheckResponse{
			Status: grpc_health_v1.HealthCheckResponse_SERVICE_UNKNOWN,
		}, nil
	}
	return &grpc_health_v1.HealthCheckResponse{Status: g.status(ctx)}, nil
}

// List 返回可用服务的健康快照。
func (g *GRPCHealthServer) List(ctx context.Context, _ *grpc_health_v1.HealthListRequest) (*grpc_health_v1.HealthListResponse, error) {
	st := g.status(ctx)
	response := &grpc_health_v1.HealthListResponse{
		Statuses: map[string]*grpc_health_v1.HealthCheckResponse{"": {Status: st}},
	}
	if g.service != "" {
		response.Statuses[g.service] = &grpc_health_v1.HealthCheckResponse{Status: st}
	}
	return response, nil
}

// Watch 暂不支持流式健康订阅。
func (g *GRPCHealthServer) Watch(_ *grpc_health_v1.HealthCheckRequest, _ grpc.ServerStreamingServer[grpc_health_v1.HealthCheckResponse]) error {
	return status.Error(codes.Unimplemented, "health watch not supported")
}
