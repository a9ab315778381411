package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orbitgw/orbit/internal/app"
	"github.com/orbitgw/orbit/internal/config"
)

// newTestApp builds a real *app.App against an in-memory config, with one
// passthrough adapter backed by a fake OpenAI-compatible upstream server.
// Grounded on pipeline_test.go's harness, one layer up: here the HTTP
// surface is exercised through the real gin engine instead of calling
// Pipeline.Run directly.
func newTestApp(t *testing.T, upstream *httptest.Server) (*app.App, string) {
	t.Helper()

	cfg := config.Default()
	cfg.HTTP.RequireAPIKey = false
	cfg.Adapters = []config.AdapterSpec{{
		Name:              "default",
		Kind:              "passthrough",
		InferenceProvider: "fake",
	}}
	cfg.Providers = []config.ProviderSpec{{
		Name:    "fake",
		Kind:    "openai",
		BaseURL: upstream.URL,
		Model:   "gpt-test",
	}}

	a, err := app.New(cfg)
	require.NoError(t, err)

	token, err := a.Keys.CreateKey(context.Background(), "test-client", "default", "")
	require.NoError(t, err)

	return a, token
}

func fakeUpstream(t *testing.T, reply string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)

		flusher := w.(http.Flusher)

		fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", reply)
		flusher.Flush()

		fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":\"\"},\"finish_reason\":\"stop\"}]}\n\n")
		flusher.Flush()
	}))
}

func adminToken(t *testing.T, a *app.App) string {
	t.Helper()

	_, err := a.Users.Register(context.Background(), "admin", "hunter2")
	require.NoError(t, err)

	token, err := a.Users.Login(context.Background(), "admin", "hunter2")
	require.NoError(t, err)

	return token
}
