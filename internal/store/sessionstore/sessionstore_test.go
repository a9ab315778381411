package sessionstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitgw/orbit/internal/domain"
)

func TestAppend_OrdinalsMonotonic(t *testing.T) {
	store := New(NewMemoryBackend(), 0)
	ctx := context.Background()

	_, err := store.EnsureSession(ctx, "s1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		ord, err := store.Append(ctx, "s1", domain.RoleUser, "hi", false)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), ord)
	}
}

func TestAppend_ConcurrentSameSessionNoCollision(t *testing.T) {
	store := New(NewMemoryBackend(), 0)
	ctx := context.Background()

	_, err := store.EnsureSession(ctx, "s1")
	require.NoError(t, err)

	var wg sync.WaitGroup

	n := 50
	wg.Add(n)

	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()

			_, _ = store.Append(ctx, "s1", domain.RoleUser, "hi", false)
		}()
	}

	wg.Wait()

	msgs, err := store.Recent(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, n)

	seen := map[int64]bool{}

	for _, m := range msgs {
		assert.False(t, seen[m.Ordinal], "duplicate ordinal %d", m.Ordinal)
		seen[m.Ordinal] = true
	}
}

func TestAppendTurn_BothOrNeither(t *testing.T) {
	store := New(NewMemoryBackend(), 0)
	ctx := context.Background()

	_, err := store.EnsureSession(ctx, "s1")
	require.NoError(t, err)

	require.NoError(t, store.AppendTurn(ctx, "s1", "hello", "hi there", false))

	msgs, err := store.Recent(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)
}

func TestPruneOlderThan_DropsOldestFirst(t *testing.T) {
	store := New(NewMemoryBackend(), 3)
	ctx := context.Background()

	_, err := store.EnsureSession(ctx, "s1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := store.Append(ctx, "s1", domain.RoleUser, "msg", false)
		require.NoError(t, err)
	}

	msgs, err := store.Recent(ctx, "s1", 0)
	require.NoError(t, err)
	require.LessOrEqual(t, len(msgs), 3)

	for i := 1; i < len(msgs); i++ {
		assert.Less(t, msgs[i-1].Ordinal, msgs[i].Ordinal)
	}
}
