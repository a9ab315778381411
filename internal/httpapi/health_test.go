package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHealth_OK(t *testing.T) {
	upstream := fakeUpstream(t, "unused")
	defer upstream.Close()

	a, _ := newTestApp(t, upstream)

	srv := httptest.NewServer(New(a).Engine)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthReady_ReadyWhenNoCircuitOpen(t *testing.T) {
	upstream := fakeUpstream(t, "unused")
	defer upstream.Close()

	a, _ := newTestApp(t, upstream)

	srv := httptest.NewServer(New(a).Engine)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health/ready")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSystemStatus_RequiresAdminAuth(t *testing.T) {
	upstream := fakeUpstream(t, "unused")
	defer upstream.Close()

	a, _ := newTestApp(t, upstream)

	srv := httptest.NewServer(New(a).Engine)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/admin/system-status")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSystemStatus_ReportsCircuitsAndAdapters(t *testing.T) {
	upstream := fakeUpstream(t, "unused")
	defer upstream.Close()

	a, _ := newTestApp(t, upstream)
	token := adminToken(t, a)

	srv := httptest.NewServer(New(a).Engine)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/admin/system-status", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded struct {
		Circuits []map[string]any `json:"circuits"`
		Adapters []map[string]any `json:"adapters"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	require.NotNil(t, decoded.Circuits)
	require.Len(t, decoded.Adapters, 1)
	require.Equal(t, "default", decoded.Adapters[0]["name"])
}
