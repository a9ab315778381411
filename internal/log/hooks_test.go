package log

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceHook(t *testing.T) {
	hook := HookFunc(traceFields)

	t.Run("with trace ID", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "orb-test-trace-id")
		fields := hook.Apply(ctx, "test message")
		assert.Len(t, fields, 1)
		assert.Equal(t, "trace_id", fields[0].Key)
		assert.Equal(t, "orb-test-trace-id", fields[0].String)
	})

	t.Run("with request ID", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "req-1")
		fields := hook.Apply(ctx, "test message")
		assert.Len(t, fields, 1)
		assert.Equal(t, "request_id", fields[0].Key)
		assert.Equal(t, "req-1", fields[0].String)
	})

	t.Run("with no ids in context", func(t *testing.T) {
		ctx := context.Background()
		fields := hook.Apply(ctx, "test message")
		assert.Len(t, fields, 0)
	})

	t.Run("with nil context", func(t *testing.T) {
		fields := hook.Apply(nil, "test message") //nolint:staticcheck
		assert.Len(t, fields, 0)
	})
}
