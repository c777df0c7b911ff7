package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/montecarlo/logging"
	"github.com/wyfcoding/montecarlo/xerrors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// Logger 访问日志中间件，超过 slowThreshold 的请求以 Warn 级别记录.
func Logger(logger *logging.Logger, slowThreshold time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		cost := time.Since(start)
		fields := []any{
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"ip", c.ClientIP(),
			"cost", cost,
			"request_id", c.Writer.Header().Get(HeaderXRequestID),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		ctx := c.Request.Context()
		switch {
		case c.Writer.Status() >= 500:
			logger.ErrorContext(ctx, "http request", fields...)
		case slowThreshold > 0 && cost > slowThreshold:
			logger.WarnContext(ctx, "http slow request", fields...)
		default:
			logger.InfoContext(ctx, "http request", fields...)
		}
	}
}

// GRPCRequestLogger 记录 gRPC 一元调用的耗时与状态.
func GRPCRequestLogger(logger *logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := codes.OK
		if err != nil {
			if xe, ok := xerrors.FromError(err); ok {
				code = xe.GRPCCode()
			} else {
				code = status.Code(err)
			}
		}

		fields := []any{"method", info.FullMethod, "status", code.String(), "duration", time.Since(start)}
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			fields = append(fields, "peer", p.Addr.String())
		}
		if err != nil {
			fields = append(fields, "error", err)
			logger.WarnContext(ctx, "grpc request failed", fields...)
			return resp, err
		}
		logger.DebugContext(ctx, "grpc request processed", fields...)
		return resp, nil
	}
}
