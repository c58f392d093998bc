package observability

import (
	"context"

	"github.com/google/uuid"
)

type traceIDKey struct{}

// ContextWithTraceID 추적 ID 저장
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFromContext 추적 ID 조회. 없으면 빈 문자열
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(traceIDKey{}).(string)
	return value
}

func newTraceID() string {
	return uuid.NewString()
}
