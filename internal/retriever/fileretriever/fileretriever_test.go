package fileretriever

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orbitgw/orbit/internal/domain"
	"github.com/orbitgw/orbit/internal/retriever"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	switch text {
	case "invoice total":
		return []float32{1, 0, 0}, nil
	case "unrelated memo":
		return []float32{0, 1, 0}, nil
	default:
		return []float32{1, 0, 0}, nil
	}
}

func TestFileRetriever_ScopesByFileIDs(t *testing.T) {
	ret := New(Config{
		Embedder:            fakeEmbedder{},
		DistanceMapping:     domain.DistanceMappingCosine,
		ConfidenceThreshold: 0,
		MaxResults:          10,
		ReturnResults:       10,
	})

	err := ret.Index(context.Background(), []Chunk{
		{FileID: "file-a", Content: "invoice total"},
		{FileID: "file-b", Content: "unrelated memo"},
	})
	require.NoError(t, err)

	docs, err := ret.GetRelevantDocuments(context.Background(), "invoice total", 10, &retriever.Filters{FileIDs: []string{"file-a"}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "file-a", docs[0].Metadata.Source)
}

func TestFileRetriever_HealthCheck(t *testing.T) {
	ret := New(Config{Embedder: fakeEmbedder{}})
	require.Equal(t, "ok", string(ret.HealthCheck(context.Background())))
}
