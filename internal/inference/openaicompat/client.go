// Package openaicompat implements an inference Client against the
// OpenAI-compatible chat-completions surface shared by OpenAI, Groq,
// DeepSeek, Mistral, and local engines (vLLM, Ollama, llama.cpp server)
// when run in OpenAI-compatible mode, grounded on axonhub's
// llm/httpclient (Request/Response/StreamEvent shape) and llm/transformer/
// openai packages, generalized from "provider-agnostic transform pipeline"
// to a single outbound chat-completions call.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tmaxmax/go-sse"

	"github.com/orbitgw/orbit/internal/domain"
	"github.com/orbitgw/orbit/internal/inference"
	"github.com/orbitgw/orbit/internal/orbiterr"
	"github.com/orbitgw/orbit/pkg/streams"
)

// Factory adapts New to inference.Factory, for Registry.Register("openai",
// Factory) style wiring at startup.
func Factory(_ context.Context, p inference.Provider) (inference.Client, error) {
	return New(Config{BaseURL: p.BaseURL, APIKey: p.APIKey}), nil
}

// Config binds one provider instance's endpoint and credentials.
type Config struct {
	BaseURL string
	APIKey  string
	// HTTPClient is reused across calls; override in tests with a client
	// pointed at an httptest.Server.
	HTTPClient *http.Client
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	return &Client{baseURL: cfg.BaseURL, apiKey: cfg.APIKey, http: httpClient}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest carries only the fields the OpenAI-compatible surface defines.
// Generation params outside this set (e.g. repeat_penalty, num_ctx) are
// silently dropped here, not rejected, per spec §4.4 param portability.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

func toRequest(messages []domain.ChatMessage, params domain.GenerationParams, stream bool) chatRequest {
	msgs := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	return chatRequest{
		Model:       params.Model,
		Messages:    msgs,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		MaxTokens:   params.MaxTokens,
		Stop:        params.StopTokens,
		Stream:      stream,
	}
}

func (c *Client) newHTTPRequest(ctx context.Context, body chatRequest) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, orbiterr.Wrap(orbiterr.KindConfig, "marshal inference request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, orbiterr.Wrap(orbiterr.KindConfig, "build inference request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	return req, nil
}

// Stream implements inference.Client. It opens an SSE connection decoded by
// go-sse and forwards token chunks through a streams.ChannelStream, so
// cancelling ctx releases the upstream HTTP response body within the
// producer's next read-or-select cycle.
func (c *Client) Stream(ctx context.Context, messages []domain.ChatMessage, params domain.GenerationParams) (streams.Stream[domain.TokenChunk], error) {
	httpReq, err := c.newHTTPRequest(ctx, toRequest(messages, params, true))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, orbiterr.Wrap(orbiterr.KindUpstreamTransient, "inference provider unreachable", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()

		kind := orbiterr.KindUpstreamTransient
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			kind = orbiterr.KindUpstreamPermanent
		}

		return nil, orbiterr.New(kind, fmt.Sprintf("inference provider returned status %d", resp.StatusCode))
	}

	return streams.NewChannelStream(ctx, 16, func(ctx context.Context, out chan<- domain.TokenChunk) error {
		defer resp.Body.Close()

		sseStream := sse.NewStream(resp.Body)

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			event, err := sseStream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}

				return orbiterr.Wrap(orbiterr.KindUpstreamTransient, "inference stream read failed", err)
			}

			if event.Data == "[DONE]" {
				return nil
			}

			var chunk chatStreamChunk
			if err := json.Unmarshal([]byte(event.Data), &chunk); err != nil {
				continue
			}

			if len(chunk.Choices) == 0 {
				continue
			}

			finished := chunk.Choices[0].FinishReason != nil

			select {
			case out <- domain.TokenChunk{Text: chunk.Choices[0].Delta.Content, Finished: finished}:
			case <-ctx.Done():
				return ctx.Err()
			}

			if finished {
				return nil
			}
		}
	}), nil
}

func (c *Client) Complete(ctx context.Context, messages []domain.ChatMessage, params domain.GenerationParams) (string, error) {
	httpReq, err := c.newHTTPRequest(ctx, toRequest(messages, params, false))
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", orbiterr.Wrap(orbiterr.KindUpstreamTransient, "inference provider unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		kind := orbiterr.KindUpstreamTransient
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			kind = orbiterr.KindUpstreamPermanent
		}

		return "", orbiterr.New(kind, fmt.Sprintf("inference provider returned status %d", resp.StatusCode))
	}

	var body struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", orbiterr.Wrap(orbiterr.KindUpstreamTransient, "decode inference response", err)
	}

	if len(body.Choices) == 0 {
		return "", orbiterr.New(orbiterr.KindUpstreamPermanent, "inference provider returned no choices")
	}

	return body.Choices[0].Message.Content, nil
}

func (c *Client) VerifyConnection(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return false
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode < 500
}
