package openaicompat

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orbitgw/orbit/internal/domain"
	"github.com/orbitgw/orbit/pkg/streams"
)

func TestClient_Stream_OrderedChunks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)

		flusher := w.(http.Flusher)

		chunks := []string{"Hello", ", ", "world"}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", c)
			flusher.Flush()
		}

		fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":\"\"},\"finish_reason\":\"stop\"}]}\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL})

	st, err := c.Stream(context.Background(), []domain.ChatMessage{{Role: "user", Content: "hi"}}, domain.GenerationParams{Model: "gpt-test"})
	require.NoError(t, err)

	got, err := streams.All[domain.TokenChunk](st)
	require.NoError(t, err)
	require.Len(t, got, 4)
	require.Equal(t, "Hello", got[0].Text)
	require.Equal(t, ", ", got[1].Text)
	require.Equal(t, "world", got[2].Text)
	require.True(t, got[3].Finished)
}

func TestClient_Complete_NonStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hi there"}}]}`))
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL})

	text, err := c.Complete(context.Background(), []domain.ChatMessage{{Role: "user", Content: "hi"}}, domain.GenerationParams{Model: "gpt-test"})
	require.NoError(t, err)
	require.Equal(t, "hi there", text)
}

func TestClient_VerifyConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL})
	require.True(t, c.VerifyConnection(context.Background()))
}

func TestClient_Stream_UpstreamErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL})

	_, err := c.Stream(context.Background(), nil, domain.GenerationParams{Model: "gpt-test"})
	require.Error(t, err)
}
