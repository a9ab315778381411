// Package retriever defines the polymorphic retriever capability set (spec
// §4.3) and the registry that instantiates and caches retriever instances
// keyed by adapter name, grounded on axonhub's channel-registry/load-balancer
// shape (internal/server/chat/channels.go, load_balancer.go) generalized
// from "LLM channel" to "retrieval datasource".
package retriever

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/orbitgw/orbit/internal/domain"
)

// Health is the tri-state health a retriever reports (spec §4.3).
type Health string

const (
	HealthOK       Health = "ok"
	HealthDegraded Health = "degraded"
	HealthDown     Health = "down"
)

// Filters restricts retrieval to a subset of the datasource (e.g. file_ids
// scoping for FileRetriever, per spec §4.1 `file_ids` request field).
type Filters struct {
	FileIDs []string
}

// Retriever is the capability set every datasource family (SQL, vector,
// file) implements (spec §4.3).
type Retriever interface {
	GetRelevantDocuments(ctx context.Context, query string, topK int, filters *Filters) ([]domain.Document, error)
	HealthCheck(ctx context.Context) Health
	Close() error
}

// Reranker reorders candidate documents using an external scoring function.
// Must be side-effect free and idempotent on its input (spec §4.3).
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []domain.Document) ([]domain.Document, error)
}

// Factory builds one Retriever instance from an Adapter's static config.
// Registered per adapter_family + implementation_ref.
type Factory func(ctx context.Context, adapter domain.Adapter) (Retriever, error)

// Registry instantiates and caches retriever instances keyed by adapter
// name (spec L2 Retriever Registry). Instances are exclusively owned by the
// registry and shared read-only by pipeline invocations (spec §3 Ownership).
type Registry struct {
	factories map[string]Factory // "family:implementation_ref" -> Factory
	cache     *lru.Cache[string, Retriever]
}

func NewRegistry(maxCached int) *Registry {
	cache, _ := lru.New[string, Retriever](maxCached)

	return &Registry{factories: map[string]Factory{}, cache: cache}
}

func familyKey(family, implRef string) string {
	return family + ":" + implRef
}

// Register binds a Factory to a (family, implementation_ref) pair. Must be
// called at startup before Instances are requested; the registry forbids
// runtime code loading (spec §9) — only registered factories are reachable.
func (r *Registry) Register(family, implRef string, f Factory) {
	r.factories[familyKey(family, implRef)] = f
}

// Get instantiates (or returns the cached instance for) adapter.Name. The
// registry is append-only until restart: once built, an instance is reused
// for the lifetime of the process unless evicted by the bounded LRU.
func (r *Registry) Get(ctx context.Context, adapter domain.Adapter) (Retriever, error) {
	if ret, ok := r.cache.Get(adapter.Name); ok {
		return ret, nil
	}

	factory, ok := r.factories[familyKey(adapter.AdapterFamily, adapter.ImplementationRef)]
	if !ok {
		return nil, ErrUnknownImplementation{Family: adapter.AdapterFamily, ImplementationRef: adapter.ImplementationRef}
	}

	ret, err := factory(ctx, adapter)
	if err != nil {
		return nil, err
	}

	r.cache.Add(adapter.Name, ret)

	return ret, nil
}

// ErrUnknownImplementation is a ConfigError-class failure: the adapter names
// a family/implementation the registry has no factory for.
type ErrUnknownImplementation struct {
	Family            string
	ImplementationRef string
}

func (e ErrUnknownImplementation) Error() string {
	return "retriever: no factory registered for " + e.Family + ":" + e.ImplementationRef
}
