package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuth_RegisterLoginLogout(t *testing.T) {
	upstream := fakeUpstream(t, "unused")
	defer upstream.Close()

	a, _ := newTestApp(t, upstream)

	srv := httptest.NewServer(New(a).Engine)
	defer srv.Close()

	registerResp, err := http.Post(srv.URL+"/auth/register", "application/json", bytes.NewBufferString(`{"username":"ada","password":"lovelace"}`))
	require.NoError(t, err)
	defer registerResp.Body.Close()
	require.Equal(t, http.StatusCreated, registerResp.StatusCode)

	loginResp, err := http.Post(srv.URL+"/auth/login", "application/json", bytes.NewBufferString(`{"username":"ada","password":"lovelace"}`))
	require.NoError(t, err)
	defer loginResp.Body.Close()
	require.Equal(t, http.StatusOK, loginResp.StatusCode)

	var decoded struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(loginResp.Body).Decode(&decoded))
	require.NotEmpty(t, decoded.Token)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/auth/logout", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+decoded.Token)

	logoutResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer logoutResp.Body.Close()
	require.Equal(t, http.StatusOK, logoutResp.StatusCode)
}

func TestAuth_LoginRejectsWrongPassword(t *testing.T) {
	upstream := fakeUpstream(t, "unused")
	defer upstream.Close()

	a, _ := newTestApp(t, upstream)

	srv := httptest.NewServer(New(a).Engine)
	defer srv.Close()

	registerResp, err := http.Post(srv.URL+"/auth/register", "application/json", bytes.NewBufferString(`{"username":"ada","password":"lovelace"}`))
	require.NoError(t, err)
	registerResp.Body.Close()

	loginResp, err := http.Post(srv.URL+"/auth/login", "application/json", bytes.NewBufferString(`{"username":"ada","password":"wrong"}`))
	require.NoError(t, err)
	defer loginResp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, loginResp.StatusCode)
}
