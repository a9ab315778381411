package supervisor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orbitgw/orbit/internal/orbiterr"
)

func TestCall_OpensAfterConsecutiveFailures(t *testing.T) {
	s := New(Policy{FOpen: 3, Cooldown: time.Hour, MaxRetries: 0, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond})

	failing := func(ctx context.Context) error {
		return orbiterr.New(orbiterr.KindUpstreamTransient, "boom")
	}

	for i := 0; i < 3; i++ {
		err := s.Call(context.Background(), "inference", "ollama", failing)
		require.Error(t, err)
	}

	// Breaker should now be open and fail fast without invoking fn.
	called := false

	err := s.Call(context.Background(), "inference", "ollama", func(ctx context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	require.False(t, called)
}

func TestCall_NonTransientNeverRetried(t *testing.T) {
	s := New(Policy{FOpen: 5, Cooldown: time.Hour, MaxRetries: 3, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond})

	calls := 0

	err := s.Call(context.Background(), "inference", "openai", func(ctx context.Context) error {
		calls++
		return orbiterr.New(orbiterr.KindValidation, "bad request")
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestCall_TransientRetriesUpToMax(t *testing.T) {
	s := New(Policy{FOpen: 10, Cooldown: time.Hour, MaxRetries: 2, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond})

	calls := 0

	err := s.Call(context.Background(), "retriever", "qa-chroma", func(ctx context.Context) error {
		calls++
		return orbiterr.New(orbiterr.KindUpstreamTransient, "timeout")
	})
	require.Error(t, err)
	require.Equal(t, 3, calls) // 1 initial + 2 retries
}

func TestCall_HalfOpenAdmitsExactlyOneProbe(t *testing.T) {
	s := New(Policy{FOpen: 1, Cooldown: 10 * time.Millisecond, MaxRetries: 0, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond})

	_ = s.Call(context.Background(), "retriever", "x", func(ctx context.Context) error {
		return orbiterr.New(orbiterr.KindUpstreamTransient, "boom")
	})

	time.Sleep(20 * time.Millisecond)

	err := s.Call(context.Background(), "retriever", "x", func(ctx context.Context) error {
		// While this probe is in flight, a second call is rejected.
		second := s.Call(context.Background(), "retriever", "x", func(ctx context.Context) error {
			return nil
		})
		require.Error(t, second)

		return nil
	})
	require.NoError(t, err)

	statuses := s.Snapshot()
	require.Len(t, statuses, 1)
	require.Equal(t, StateClosed, statuses[0].State)
	require.Equal(t, fmt.Sprintf("%016x", shardHash("retriever:x")), statuses[0].TargetID)
}
