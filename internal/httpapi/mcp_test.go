package httpapi

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orbitgw/orbit/internal/pipeline"
)

func TestMCPHandler_ChatStreamEmitsResultsWithMatchingID(t *testing.T) {
	upstream := fakeUpstream(t, "hi from mcp")
	defer upstream.Close()

	a, token := newTestApp(t, upstream)

	srv := httptest.NewServer(New(a).Engine)
	defer srv.Close()

	body := `{"jsonrpc":"2.0","id":7,"method":"chat.stream","params":{"message":"hi"}}`

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/mcp", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("X-API-Key", token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	type mcpFrame struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  pipeline.Event  `json:"result"`
	}

	var frames []mcpFrame

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var frame mcpFrame
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &frame))
		frames = append(frames, frame)
	}

	require.NotEmpty(t, frames)

	for _, f := range frames {
		require.Equal(t, "2.0", f.JSONRPC)
		require.JSONEq(t, "7", string(f.ID))
	}

	require.Equal(t, pipeline.EventDone, frames[len(frames)-1].Result.Type)
}

func TestMCPHandler_UnknownMethodReturnsJSONRPCError(t *testing.T) {
	upstream := fakeUpstream(t, "unused")
	defer upstream.Close()

	a, token := newTestApp(t, upstream)

	srv := httptest.NewServer(New(a).Engine)
	defer srv.Close()

	body := `{"jsonrpc":"2.0","id":1,"method":"chat.poke","params":{"message":"hi"}}`

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/mcp", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("X-API-Key", token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var decoded struct {
		Error struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	require.Equal(t, -32601, decoded.Error.Code)
}
