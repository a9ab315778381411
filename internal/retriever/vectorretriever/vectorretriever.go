// Package vectorretriever implements the vector family of the retriever
// abstraction (spec §4.3 algorithm (vector family)): embed once, search a
// datasource, convert distance to confidence, filter, optionally rerank,
// return the top N by descending score.
package vectorretriever

import (
	"context"

	"github.com/orbitgw/orbit/internal/domain"
	"github.com/orbitgw/orbit/internal/orbiterr"
	"github.com/orbitgw/orbit/internal/retriever"
)

// Embedder turns a query string into a vector once per retrieval call.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Match is one raw hit from a VectorStore search, before confidence
// conversion/filtering.
type Match struct {
	Content  string
	Source   string
	Answer   string
	Question string
	Distance float64
}

// VectorStore is the minimal capability ORBIT needs from any of
// Chroma/Qdrant/Milvus/Pinecone/Elasticsearch: top-k nearest neighbor search
// by embedding. Driver-specific clients implement this directly; ORBIT owns
// only the connection handle and credentials, never the store's schema
// (spec §6).
type VectorStore interface {
	Search(ctx context.Context, embedding []float32, topK int, filters *retriever.Filters) ([]Match, error)
	Ping(ctx context.Context) error
}

// Retriever is the vector-family retriever.
type Retriever struct {
	embedder Embedder
	store    VectorStore
	reranker retriever.Reranker // optional

	distanceMapping       domain.DistanceMapping
	distanceScalingFactor float64
	confidenceThreshold   float64
	maxResults            int
	returnResults         int
}

type Config struct {
	Embedder              Embedder
	Store                 VectorStore
	Reranker              retriever.Reranker
	DistanceMapping       domain.DistanceMapping
	DistanceScalingFactor float64
	ConfidenceThreshold   float64
	MaxResults            int
	ReturnResults         int
}

func New(cfg Config) *Retriever {
	return &Retriever{
		embedder:              cfg.Embedder,
		store:                 cfg.Store,
		reranker:              cfg.Reranker,
		distanceMapping:       cfg.DistanceMapping,
		distanceScalingFactor: cfg.DistanceScalingFactor,
		confidenceThreshold:   cfg.ConfidenceThreshold,
		maxResults:            cfg.MaxResults,
		returnResults:         cfg.ReturnResults,
	}
}

// GetRelevantDocuments runs the full spec §4.3 vector algorithm.
func (r *Retriever) GetRelevantDocuments(ctx context.Context, query string, topK int, filters *retriever.Filters) ([]domain.Document, error) {
	if topK <= 0 {
		topK = r.maxResults
	}

	// Step 1: embed query once.
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, orbiterr.Wrap(orbiterr.KindUpstreamTransient, "embedding provider failed", err)
	}

	// Step 2: search datasource for top max_results.
	matches, err := r.store.Search(ctx, vec, topK, filters)
	if err != nil {
		return nil, orbiterr.Wrap(orbiterr.KindUpstreamTransient, "vector store search failed", err)
	}

	// Step 3: convert distance to confidence.
	docs := make([]domain.Document, 0, len(matches))

	for _, m := range matches {
		confidence := retriever.Confidence(r.distanceMapping, m.Distance, r.distanceScalingFactor)
		docs = append(docs, domain.Document{
			Content: m.Content,
			Metadata: domain.DocumentMetadata{
				Source:     m.Source,
				Answer:     m.Answer,
				Question:   m.Question,
				Distance:   m.Distance,
				Confidence: confidence,
			},
		})
	}

	// Step 4: drop below threshold, before reranking sees the candidates.
	docs = retriever.FilterByThreshold(docs, r.confidenceThreshold)

	// Step 5: rerank the surviving candidates.
	if r.reranker != nil {
		docs, err = r.reranker.Rerank(ctx, query, docs)
		if err != nil {
			return nil, orbiterr.Wrap(orbiterr.KindUpstreamTransient, "reranker failed", err)
		}
	}

	// Step 6: return up to return_results sorted by descending score,
	// tie-break by original (post-filter, post-rerank) order.
	return retriever.SortAndLimit(docs, r.returnResults), nil
}

func (r *Retriever) HealthCheck(ctx context.Context) retriever.Health {
	if err := r.store.Ping(ctx); err != nil {
		return retriever.HealthDown
	}

	return retriever.HealthOK
}

func (r *Retriever) Close() error {
	return nil
}
