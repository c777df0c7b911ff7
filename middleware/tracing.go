package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/montecarlo/tracing"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// HeaderXTraceID Trace ID 响应头.
const HeaderXTraceID = "X-Trace-ID"

// Tracing 为每个请求创建 Span.
func Tracing(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// TraceIDHeader 必须位于 Tracing 之后.
func TraceIDHeader() gin.HandlerFunc {
	return func(c *gin.Context) {
		if traceID := tracing.GetTraceID(c.Request.Context()); traceID != "" {
			c.Header(HeaderXTraceID, traceID)
		}
		c.Next()
	}
}
