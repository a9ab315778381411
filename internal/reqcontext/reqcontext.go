// Package reqcontext carries request-scoped values — the resolved API key,
// adapter, and session id — through the call stack, grounded on axonhub's
// internal/contexts package, instead of re-threading them as parameters.
package reqcontext

import (
	"context"

	"github.com/orbitgw/orbit/internal/domain"
)

type apiKeyKey struct{}

type adapterKey struct{}

type sessionIDKey struct{}

func WithAPIKey(ctx context.Context, key *domain.ApiKey) context.Context {
	return context.WithValue(ctx, apiKeyKey{}, key)
}

func APIKey(ctx context.Context) (*domain.ApiKey, bool) {
	v, ok := ctx.Value(apiKeyKey{}).(*domain.ApiKey)
	return v, ok
}

func WithAdapter(ctx context.Context, adapter *domain.Adapter) context.Context {
	return context.WithValue(ctx, adapterKey{}, adapter)
}

func Adapter(ctx context.Context) (*domain.Adapter, bool) {
	v, ok := ctx.Value(adapterKey{}).(*domain.Adapter)
	return v, ok
}

func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

func SessionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sessionIDKey{}).(string)
	return v, ok
}
