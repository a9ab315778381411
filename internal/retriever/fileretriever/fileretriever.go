// Package fileretriever implements the file family of the retriever
// abstraction (spec §4.3): query against already-chunked uploaded files,
// indexed in a local vector store. Chunking strategy itself is explicitly
// out of scope (spec §1 Non-goals); fileretriever accepts pre-chunked
// content and owns only embedding + local indexing + lookup, built on top
// of vectorretriever's matching and scoring machinery.
package fileretriever

import (
	"context"
	"sync"

	"github.com/orbitgw/orbit/internal/domain"
	"github.com/orbitgw/orbit/internal/orbiterr"
	"github.com/orbitgw/orbit/internal/retriever"
	"github.com/orbitgw/orbit/internal/retriever/vectorretriever"
)

// Chunk is one pre-chunked unit of an uploaded file, handed to Index by
// whatever ingestion surface owns the chunking strategy.
type Chunk struct {
	FileID  string
	Content string
}

// Retriever indexes chunks per file_id into an in-process vector store and
// answers GetRelevantDocuments scoped by the request's file_ids filter
// (spec §4.1 `file_ids` request field).
type Retriever struct {
	mu       sync.RWMutex
	embedder vectorretriever.Embedder
	store    *vectorretriever.MemStore
	inner    *vectorretriever.Retriever

	distanceMapping       domain.DistanceMapping
	distanceScalingFactor float64
	confidenceThreshold   float64
	maxResults            int
	returnResults         int
}

type Config struct {
	Embedder              vectorretriever.Embedder
	DistanceMapping       domain.DistanceMapping
	DistanceScalingFactor float64
	ConfidenceThreshold   float64
	MaxResults            int
	ReturnResults         int
}

func New(cfg Config) *Retriever {
	store := vectorretriever.NewMemStore()

	return &Retriever{
		embedder: cfg.Embedder,
		store:    store,
		inner: vectorretriever.New(vectorretriever.Config{
			Embedder:              cfg.Embedder,
			Store:                 store,
			DistanceMapping:       cfg.DistanceMapping,
			DistanceScalingFactor: cfg.DistanceScalingFactor,
			ConfidenceThreshold:   cfg.ConfidenceThreshold,
			MaxResults:            cfg.MaxResults,
			ReturnResults:         cfg.ReturnResults,
		}),
		distanceMapping:       cfg.DistanceMapping,
		distanceScalingFactor: cfg.DistanceScalingFactor,
		confidenceThreshold:   cfg.ConfidenceThreshold,
		maxResults:            cfg.MaxResults,
		returnResults:         cfg.ReturnResults,
	}
}

// Index embeds and stores a batch of already-chunked content. Safe to call
// repeatedly as files are uploaded; there is no eviction, matching the
// teacher's append-only channel registry pattern (callers that need
// removal track file_ids and rebuild).
func (r *Retriever) Index(ctx context.Context, chunks []Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range chunks {
		vec, err := r.embedder.Embed(ctx, c.Content)
		if err != nil {
			return orbiterr.Wrap(orbiterr.KindUpstreamTransient, "embedding provider failed during file indexing", err)
		}

		r.store.Add(vec, vectorretriever.Match{Content: c.Content, Source: c.FileID})
	}

	return nil
}

func (r *Retriever) GetRelevantDocuments(ctx context.Context, query string, topK int, filters *retriever.Filters) ([]domain.Document, error) {
	return r.inner.GetRelevantDocuments(ctx, query, topK, filters)
}

func (r *Retriever) HealthCheck(ctx context.Context) retriever.Health {
	return r.inner.HealthCheck(ctx)
}

func (r *Retriever) Close() error {
	return r.inner.Close()
}
