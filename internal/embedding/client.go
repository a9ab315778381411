// Package embedding implements the embedding-provider call the vector
// retriever algorithm's step 1 requires ("embed query once via the
// configured embedding provider", spec §4.3). It reuses the same
// net/http + JSON request idiom as internal/inference/openaicompat against
// an OpenAI-compatible /embeddings endpoint, since every vector datasource
// family the spec names (Chroma, Qdrant, Milvus, Pinecone, Elasticsearch)
// is paired in practice with an OpenAI-compatible embedding surface rather
// than a bespoke one.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/orbitgw/orbit/internal/orbiterr"
)

// Client implements vectorretriever.Embedder (and fileretriever.Config's
// Embedder) without importing either package, so this package stays a leaf
// the retrievers depend on rather than the other way around.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{baseURL: cfg.BaseURL, apiKey: cfg.APIKey, model: cfg.Model, http: httpClient}
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed turns text into one vector via a single /embeddings call.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(embeddingRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, orbiterr.Wrap(orbiterr.KindConfig, "marshal embedding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, orbiterr.Wrap(orbiterr.KindConfig, "build embedding request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, orbiterr.Wrap(orbiterr.KindUpstreamTransient, "embedding provider unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		kind := orbiterr.KindUpstreamTransient
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			kind = orbiterr.KindUpstreamPermanent
		}

		return nil, orbiterr.New(kind, fmt.Sprintf("embedding provider returned status %d", resp.StatusCode))
	}

	var body embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, orbiterr.Wrap(orbiterr.KindUpstreamTransient, "decode embedding response", err)
	}

	if len(body.Data) == 0 {
		return nil, orbiterr.New(orbiterr.KindUpstreamPermanent, "embedding provider returned no vectors")
	}

	return body.Data[0].Embedding, nil
}
