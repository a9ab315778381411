package httpapi

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChatCompletions_NonStreamingDefault(t *testing.T) {
	upstream := fakeUpstream(t, "pong")
	defer upstream.Close()

	a, token := newTestApp(t, upstream)

	srv := httptest.NewServer(New(a).Engine)
	defer srv.Close()

	body := `{"messages":[{"role":"user","content":"ping"}]}`

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/chat/completions", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("X-API-Key", token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded struct {
		Object  string `json:"object"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	require.Equal(t, "chat.completion", decoded.Object)
	require.Len(t, decoded.Choices, 1)
	require.Equal(t, "pong", decoded.Choices[0].Message.Content)
}

func TestChatCompletions_StreamingEndsWithDoneMarker(t *testing.T) {
	upstream := fakeUpstream(t, "pong")
	defer upstream.Close()

	a, token := newTestApp(t, upstream)

	srv := httptest.NewServer(New(a).Engine)
	defer srv.Close()

	body := `{"messages":[{"role":"user","content":"ping"}],"stream":true}`

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/chat/completions", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("X-API-Key", token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var lastLine string

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data:") {
			lastLine = line
		}
	}

	require.Equal(t, "data: [DONE]", lastLine)
}

func TestChatCompletions_RejectsMissingUserMessage(t *testing.T) {
	upstream := fakeUpstream(t, "unused")
	defer upstream.Close()

	a, token := newTestApp(t, upstream)

	srv := httptest.NewServer(New(a).Engine)
	defer srv.Close()

	body := `{"messages":[{"role":"system","content":"be nice"}]}`

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/chat/completions", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("X-API-Key", token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
