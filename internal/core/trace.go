package core

import "context"

type ctxKey string

const ctxKeyTraceID ctxKey = "trace_id"

// WithTraceID tags the context of one tool invocation.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyTraceID, id)
}

// TraceID returns the invocation's trace id, or "" when untagged.
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyTraceID).(string)
	return id
}
