package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdminAPIKeys_RequiresBearerToken(t *testing.T) {
	upstream := fakeUpstream(t, "unused")
	defer upstream.Close()

	a, _ := newTestApp(t, upstream)

	srv := httptest.NewServer(New(a).Engine)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/admin/api-keys")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminAPIKeys_CreateListDeactivateDelete(t *testing.T) {
	upstream := fakeUpstream(t, "unused")
	defer upstream.Close()

	a, _ := newTestApp(t, upstream)
	token := adminToken(t, a)

	srv := httptest.NewServer(New(a).Engine)
	defer srv.Close()

	authed := func(method, path string, body []byte) *http.Response {
		req, err := http.NewRequest(method, srv.URL+path, bytes.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)

		return resp
	}

	createResp := authed(http.MethodPost, "/admin/api-keys", []byte(`{"client_name":"acme","adapter_name":"default"}`))
	defer createResp.Body.Close()
	require.Equal(t, http.StatusCreated, createResp.StatusCode)

	var created struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(createResp.Body).Decode(&created))
	require.NotEmpty(t, created.Token)

	listResp := authed(http.MethodGet, "/admin/api-keys", nil)
	defer listResp.Body.Close()
	require.Equal(t, http.StatusOK, listResp.StatusCode)

	statusResp := authed(http.MethodGet, "/admin/api-keys/"+created.Token, nil)
	defer statusResp.Body.Close()
	require.Equal(t, http.StatusOK, statusResp.StatusCode)

	deactivateResp := authed(http.MethodPost, "/admin/api-keys/"+created.Token+"/deactivate", nil)
	defer deactivateResp.Body.Close()
	require.Equal(t, http.StatusOK, deactivateResp.StatusCode)

	deleteResp := authed(http.MethodDelete, "/admin/api-keys/"+created.Token, nil)
	defer deleteResp.Body.Close()
	require.Equal(t, http.StatusOK, deleteResp.StatusCode)
}

func TestAdminPrompts_CreateUpdateDelete(t *testing.T) {
	upstream := fakeUpstream(t, "unused")
	defer upstream.Close()

	a, _ := newTestApp(t, upstream)
	token := adminToken(t, a)

	srv := httptest.NewServer(New(a).Engine)
	defer srv.Close()

	authed := func(method, path string, body []byte) *http.Response {
		req, err := http.NewRequest(method, srv.URL+path, bytes.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)

		return resp
	}

	createResp := authed(http.MethodPost, "/admin/prompts", []byte(`{"id":"p1","name":"greeter","text":"Be nice."}`))
	defer createResp.Body.Close()
	require.Equal(t, http.StatusCreated, createResp.StatusCode)

	getResp := authed(http.MethodGet, "/admin/prompts/p1", nil)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	updateResp := authed(http.MethodPut, "/admin/prompts/p1", []byte(`{"text":"Be extra nice."}`))
	defer updateResp.Body.Close()
	require.Equal(t, http.StatusOK, updateResp.StatusCode)

	deleteResp := authed(http.MethodDelete, "/admin/prompts/p1", nil)
	defer deleteResp.Body.Close()
	require.Equal(t, http.StatusOK, deleteResp.StatusCode)
}
