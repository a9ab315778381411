package retriever

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orbitgw/orbit/internal/domain"
)

func TestConfidence_Cosine(t *testing.T) {
	assert.InDelta(t, 0.18, Confidence(domain.DistanceMappingCosine, 0.82, 0), 1e-9)
}

func TestConfidence_Exponential(t *testing.T) {
	got := Confidence(domain.DistanceMappingExponential, 0, 2)
	assert.InDelta(t, 1.0, got, 1e-9)
}

func TestRankAndFilter_DropsBelowThresholdSortsDescendingTieBreaksByOrder(t *testing.T) {
	docs := []domain.Document{
		{Content: "a", Metadata: domain.DocumentMetadata{Confidence: 0.82, Source: "a"}},
		{Content: "b", Metadata: domain.DocumentMetadata{Confidence: 0.71, Source: "b"}},
		{Content: "c", Metadata: domain.DocumentMetadata{Confidence: 0.60, Source: "c"}},
	}

	out := RankAndFilter(docs, 0.65, 2)

	assert.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Metadata.Source)
	assert.Equal(t, "b", out[1].Metadata.Source)
}

func TestFilterByThreshold_DropsBelowThresholdOnly(t *testing.T) {
	docs := []domain.Document{
		{Content: "a", Metadata: domain.DocumentMetadata{Confidence: 0.82, Source: "a"}},
		{Content: "b", Metadata: domain.DocumentMetadata{Confidence: 0.60, Source: "b"}},
	}

	out := FilterByThreshold(docs, 0.65)

	assert.Len(t, out, 1)
	assert.Equal(t, "a", out[0].Metadata.Source)
}

func TestRankAndFilter_TieBreakByOriginalOrder(t *testing.T) {
	docs := []domain.Document{
		{Content: "x", Metadata: domain.DocumentMetadata{Confidence: 0.70, Source: "x"}},
		{Content: "y", Metadata: domain.DocumentMetadata{Confidence: 0.70, Source: "y"}},
	}

	out := RankAndFilter(docs, 0.5, 0)

	assert.Equal(t, "x", out[0].Metadata.Source)
	assert.Equal(t, "y", out[1].Metadata.Source)
}
