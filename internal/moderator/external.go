package moderator

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/orbitgw/orbit/internal/orbiterr"
)

// External calls a remote moderation endpoint (OpenAI moderation API,
// Anthropic classifier, or an LLM-Guard sidecar exposing the same
// request/response shape), grounded on the same httpclient request-building
// idiom as internal/inference/openaicompat but without streaming, since
// moderation endpoints return a single verdict.
type External struct {
	name       string
	baseURL    string
	apiKey     string
	threshold  float64
	httpClient *http.Client
}

type ExternalConfig struct {
	Name       string
	BaseURL    string
	APIKey     string
	// Threshold is the score at or above which a flagged category marks the
	// text unsafe; providers report per-category scores in [0,1].
	Threshold  float64
	HTTPClient *http.Client
}

func NewExternal(cfg ExternalConfig) *External {
	name := cfg.Name
	if name == "" {
		name = "external-moderation"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}

	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = 0.5
	}

	return &External{name: name, baseURL: cfg.BaseURL, apiKey: cfg.APIKey, threshold: threshold, httpClient: httpClient}
}

func (e *External) Name() string {
	return e.name
}

type moderationRequest struct {
	Input string `json:"input"`
}

type moderationResponse struct {
	Results []struct {
		Flagged        bool               `json:"flagged"`
		CategoryScores map[string]float64 `json:"category_scores"`
	} `json:"results"`
}

func (e *External) Check(ctx context.Context, text string, _ Direction) (Verdict, error) {
	payload, err := json.Marshal(moderationRequest{Input: text})
	if err != nil {
		return Verdict{}, orbiterr.Wrap(orbiterr.KindConfig, "marshal moderation request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/moderations", bytes.NewReader(payload))
	if err != nil {
		return Verdict{}, orbiterr.Wrap(orbiterr.KindConfig, "build moderation request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return Verdict{}, orbiterr.Wrap(orbiterr.KindUpstreamTransient, "moderation provider unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Verdict{}, orbiterr.New(orbiterr.KindUpstreamTransient, "moderation provider returned an error status")
	}

	var body moderationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Verdict{}, orbiterr.Wrap(orbiterr.KindUpstreamTransient, "decode moderation response", err)
	}

	if len(body.Results) == 0 {
		return Verdict{Safe: true}, nil
	}

	result := body.Results[0]

	var topScore float64

	var topCategory string

	for category, score := range result.CategoryScores {
		if score > topScore {
			topScore = score
			topCategory = category
		}
	}

	if result.Flagged || topScore >= e.threshold {
		return Verdict{Safe: false, Reason: "flagged category: " + topCategory, Score: topScore}, nil
	}

	return Verdict{Safe: true, Score: topScore}, nil
}
