package log

import "context"

func init() {
	RegisterHook(HookFunc(traceFields))
}

func traceFields(ctx context.Context, _ string) []Field {
	if ctx == nil {
		return nil
	}

	var fields []Field

	if id, ok := TraceIDFromContext(ctx); ok && id != "" {
		fields = append(fields, String("trace_id", id))
	}

	if id, ok := RequestIDFromContext(ctx); ok && id != "" {
		fields = append(fields, String("request_id", id))
	}

	return fields
}

type traceIDKey struct{}

type requestIDKey struct{}

// WithTraceID attaches a trace id that subsequent log calls will surface automatically.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, id)
}

func TraceIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(traceIDKey{}).(string)
	return v, ok
}

// WithRequestID attaches the per-request correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(requestIDKey{}).(string)
	return v, ok
}
