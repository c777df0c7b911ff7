// Package contextx 在 context.Context 中存取请求级元数据，使用私有类型作为 Key。
package contextx

import "context"

type contextKey int

const (
	requestIDKey contextKey = iota
	runIDKey
)

// WithRequestID 将请求 ID 注入到 Context 中。
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID 从 Context 中提取请求 ID。
func GetRequestID(ctx context.Context) string {
	if val, ok := ctx.Value(requestIDKey).(string); ok {
		return val
	}
	return ""
}

// WithRunID 注入流水线运行编号。
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// GetRunID 提取流水线运行编号。
func GetRunID(ctx context.Context) string {
	if val, ok := ctx.Value(runIDKey).(string); ok {
		return val
	}
	return ""
}
