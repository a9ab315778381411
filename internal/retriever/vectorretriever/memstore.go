package vectorretriever

import (
	"context"
	"math"
	"sort"

	"github.com/orbitgw/orbit/internal/retriever"
)

type memEntry struct {
	vector   []float32
	match    Match
}

// MemStore is a brute-force, in-process VectorStore. It stands in for the
// Chroma/Qdrant/Milvus/Pinecone/Elasticsearch drivers the spec treats as
// external collaborators (§1 Non-goals), and backs FileRetriever's locally
// chunked index (spec §4.3).
type MemStore struct {
	entries []memEntry
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (m *MemStore) Add(vector []float32, match Match) {
	m.entries = append(m.entries, memEntry{vector: vector, match: match})
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64

	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}

	if na == 0 || nb == 0 {
		return 1
	}

	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))

	return 1 - sim
}

func (m *MemStore) Search(_ context.Context, embedding []float32, topK int, filters *retriever.Filters) ([]Match, error) {
	type scored struct {
		match    Match
		distance float64
	}

	scoredEntries := make([]scored, 0, len(m.entries))

	for _, e := range m.entries {
		if filters != nil && len(filters.FileIDs) > 0 {
			allowed := false

			for _, id := range filters.FileIDs {
				if id == e.match.Source {
					allowed = true
					break
				}
			}

			if !allowed {
				continue
			}
		}

		scoredEntries = append(scoredEntries, scored{match: e.match, distance: cosineDistance(embedding, e.vector)})
	}

	sort.Slice(scoredEntries, func(i, j int) bool { return scoredEntries[i].distance < scoredEntries[j].distance })

	if topK > 0 && len(scoredEntries) > topK {
		scoredEntries = scoredEntries[:topK]
	}

	out := make([]Match, 0, len(scoredEntries))
	for _, s := range scoredEntries {
		m := s.match
		m.Distance = s.distance
		out = append(out, m)
	}

	return out, nil
}

func (m *MemStore) Ping(_ context.Context) error {
	return nil
}
