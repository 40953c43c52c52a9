package ctxkeys

// TraceIDKey 追踪 ID 的 context key
type TraceIDKey struct{}
