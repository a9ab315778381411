package keystore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitgw/orbit/internal/domain"
	"github.com/orbitgw/orbit/internal/orbiterr"
)

func alwaysOK(string) bool { return true }

func TestResolve_UnknownToken(t *testing.T) {
	store := New(NewMemoryBackend("orbit_"), alwaysOK, "orbit_", time.Minute)

	_, err := store.Resolve(context.Background(), "nope")
	require.Error(t, err)

	e, ok := orbiterr.As(err)
	require.True(t, ok)
	assert.Equal(t, orbiterr.KindAuth, e.Kind)
}

func TestResolve_InactiveKeyIsForbidden(t *testing.T) {
	backend := NewMemoryBackend("orbit_")
	store := New(backend, alwaysOK, "orbit_", time.Minute)

	token, err := store.CreateKey(context.Background(), "acme", "qa-sql", "")
	require.NoError(t, err)

	// cache was warmed active=true by CreateKey; Deactivate must invalidate it.
	require.NoError(t, store.Deactivate(context.Background(), token))

	_, err = store.Resolve(context.Background(), token)
	require.Error(t, err)

	e, ok := orbiterr.As(err)
	require.True(t, ok)
	assert.Equal(t, orbiterr.KindForbidden, e.Kind)
}

func TestResolve_UnknownAdapterIsMisconfigured(t *testing.T) {
	backend := NewMemoryBackend("orbit_")
	store := New(backend, func(string) bool { return false }, "orbit_", time.Minute)

	token, err := backendCreateKeyDirect(backend, "acme", "qa-sql")
	require.NoError(t, err)

	_, err = store.Resolve(context.Background(), token)
	require.Error(t, err)

	e, ok := orbiterr.As(err)
	require.True(t, ok)
	assert.Equal(t, orbiterr.KindConfig, e.Kind)
}

func TestCreateKey_UnknownSystemPromptIDIsRejected(t *testing.T) {
	store := New(NewMemoryBackend("orbit_"), alwaysOK, "orbit_", time.Minute)

	_, err := store.CreateKey(context.Background(), "acme", "qa-sql", "does-not-exist")
	require.Error(t, err)

	e, ok := orbiterr.As(err)
	require.True(t, ok)
	assert.Equal(t, orbiterr.KindConfig, e.Kind)
}

func backendCreateKeyDirect(b *MemoryBackend, clientName, adapterName string) (string, error) {
	k, err := b.CreateKey(context.Background(), clientName, adapterName, "")
	if err != nil {
		return "", err
	}

	return k.Token, nil
}

func TestResolve_CachedAfterFirstLookup(t *testing.T) {
	backend := NewMemoryBackend("orbit_")
	store := New(backend, alwaysOK, "orbit_", time.Minute)

	token, err := store.CreateKey(context.Background(), "acme", "qa-sql", "")
	require.NoError(t, err)

	r, err := store.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "qa-sql", r.AdapterName)
	assert.True(t, r.Active)
}

func TestDeactivate_IsSoft(t *testing.T) {
	backend := NewMemoryBackend("orbit_")
	store := New(backend, alwaysOK, "orbit_", time.Minute)

	token, err := store.CreateKey(context.Background(), "acme", "qa-sql", "")
	require.NoError(t, err)
	require.NoError(t, store.Deactivate(context.Background(), token))

	keys, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.False(t, keys[0].Active)
}

func TestUpdatePrompt_BumpsVersionAndTimestamp(t *testing.T) {
	backend := NewMemoryBackend("orbit_")
	store := New(backend, alwaysOK, "orbit_", time.Minute)

	p := &domain.SystemPrompt{Name: "greeter", Text: "You are helpful."}
	require.NoError(t, store.CreatePrompt(context.Background(), p))

	updated, err := store.UpdatePrompt(context.Background(), p.ID, "You are very helpful.")
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Version)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt) || updated.UpdatedAt.Equal(updated.CreatedAt))
}
