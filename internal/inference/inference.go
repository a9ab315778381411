// Package inference defines the polymorphic inference client capability set
// (spec §4.4) and the registry that builds and caches client instances per
// provider, grounded on the retriever registry shape (internal/retriever)
// which is itself grounded on axonhub's channel registry
// (llm/httpclient, internal/server/chat/channels.go).
package inference

import (
	"context"
	"sync"

	"github.com/orbitgw/orbit/internal/domain"
	"github.com/orbitgw/orbit/pkg/streams"
)

// Client is the capability set every inference backend family (local
// engines: llama.cpp, vLLM, Ollama; remote APIs: OpenAI, Anthropic, Gemini,
// Mistral, Cohere, Groq, DeepSeek, Bedrock, Azure, Watson, Vertex)
// implements (spec §4.4).
type Client interface {
	// Stream returns a lazy, finite, non-restartable sequence of token
	// chunks. Implementations must propagate backpressure and release the
	// upstream connection promptly when ctx is cancelled.
	Stream(ctx context.Context, messages []domain.ChatMessage, params domain.GenerationParams) (streams.Stream[domain.TokenChunk], error)

	// Complete drains a Stream into a single string. The default
	// implementation in this package is reusable by any Client built on
	// Stream; providers may override it when the backend has a cheaper
	// non-streaming endpoint.
	Complete(ctx context.Context, messages []domain.ChatMessage, params domain.GenerationParams) (string, error)

	VerifyConnection(ctx context.Context) bool
}

// Complete is the default `complete` built on top of `stream` (spec §4.4:
// "may be built on top of stream"), for providers with no cheaper
// non-streaming endpoint of their own.
func Complete(ctx context.Context, c Client, messages []domain.ChatMessage, params domain.GenerationParams) (string, error) {
	st, err := c.Stream(ctx, messages, params)
	if err != nil {
		return "", err
	}
	defer st.Close()

	var text string

	for st.Next() {
		text += st.Current().Text
	}

	if err := st.Err(); err != nil {
		return "", err
	}

	return text, nil
}

// Provider is one configured inference-client binding (spec §4.4),
// independent of config.ProviderSpec so this package never depends on the
// config package; app wiring converts one to the other.
type Provider struct {
	Name    string
	Kind    string
	BaseURL string
	APIKey  string
	Model   string
}

// Factory builds one Client instance from a provider's static config.
// Registered per provider kind.
type Factory func(ctx context.Context, provider Provider) (Client, error)

// Registry instantiates and caches inference clients keyed by provider
// name, mirroring retriever.Registry. Unlike the retriever registry it has
// no LRU bound: the number of configured inference providers is expected to
// stay small and every one of them backs live traffic, so eviction would
// just reintroduce connection-setup latency on the next request.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory // provider kind -> Factory
	instances map[string]Client  // provider name -> Client
}

func NewRegistry() *Registry {
	return &Registry{
		factories: map[string]Factory{},
		instances: map[string]Client{},
	}
}

// Register binds a Factory to a provider kind (e.g. "openai-compatible",
// "ollama"). Must be called at startup before Get is requested.
func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// Get instantiates (or returns the cached instance for) provider.Name.
func (r *Registry) Get(ctx context.Context, provider Provider) (Client, error) {
	r.mu.RLock()
	if c, ok := r.instances[provider.Name]; ok {
		r.mu.RUnlock()
		return c, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.instances[provider.Name]; ok {
		return c, nil
	}

	factory, ok := r.factories[provider.Kind]
	if !ok {
		return nil, ErrUnknownProviderKind{Kind: provider.Kind}
	}

	c, err := factory(ctx, provider)
	if err != nil {
		return nil, err
	}

	r.instances[provider.Name] = c

	return c, nil
}

type ErrUnknownProviderKind struct {
	Kind string
}

func (e ErrUnknownProviderKind) Error() string {
	return "inference: no factory registered for provider kind " + e.Kind
}
