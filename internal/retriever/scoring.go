package retriever

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/orbitgw/orbit/internal/domain"
)

// Confidence converts a raw distance into a [0,1] confidence score using the
// adapter's declared mapping (spec §4.3 step 3 / §9 open question: the
// mapping is explicit per adapter, never inferred).
func Confidence(mapping domain.DistanceMapping, distance, scalingFactor float64) float64 {
	switch mapping {
	case domain.DistanceMappingExponential:
		if scalingFactor <= 0 {
			scalingFactor = 1
		}

		return math.Exp(-distance / scalingFactor)
	case domain.DistanceMappingCosine:
		fallthrough
	default:
		return 1 - distance
	}
}

// FilterByThreshold implements spec §4.3 step 4: drop every document whose
// confidence is below threshold. Callers that rerank (step 5) must call this
// before reranking, so the reranker only ever sees documents that survived
// the cut, per the spec's literal step order (4 then 5).
func FilterByThreshold(docs []domain.Document, threshold float64) []domain.Document {
	out := make([]domain.Document, 0, len(docs))

	for _, d := range docs {
		if d.Metadata.Confidence < threshold {
			continue
		}

		d.Score = decimal.NewFromFloat(d.Metadata.Confidence)
		out = append(out, d)
	}

	return out
}

// SortAndLimit implements spec §4.3 step 6: return up to returnResults
// documents sorted by descending score, tie-broken by original datasource
// (pre-sort) order.
func SortAndLimit(docs []domain.Document, returnResults int) []domain.Document {
	type scored struct {
		doc domain.Document
		idx int
	}

	indexed := make([]scored, len(docs))
	for i, d := range docs {
		indexed[i] = scored{doc: d, idx: i}
	}

	sort.SliceStable(indexed, func(i, j int) bool {
		if !indexed[i].doc.Score.Equal(indexed[j].doc.Score) {
			return indexed[i].doc.Score.GreaterThan(indexed[j].doc.Score)
		}

		return indexed[i].idx < indexed[j].idx
	})

	out := make([]domain.Document, 0, len(indexed))

	for _, s := range indexed {
		if returnResults > 0 && len(out) >= returnResults {
			break
		}

		out = append(out, s.doc)
	}

	return out
}

// RankAndFilter implements spec §4.3 steps 3-4-6 in one call: drop below
// threshold, return up to returnResults sorted by descending score,
// tie-broken by original datasource order. Used directly by retriever
// families that never rerank (step 5 is a no-op for them); families with an
// optional reranker call FilterByThreshold and SortAndLimit separately so
// the reranker sits between the two, per the spec's literal step order.
func RankAndFilter(docs []domain.Document, threshold float64, returnResults int) []domain.Document {
	return SortAndLimit(FilterByThreshold(docs, threshold), returnResults)
}
