package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getnfig/nfig/backend/memory"
	"github.com/getnfig/nfig/httpapi"
	"github.com/getnfig/nfig/pubsub"
	"github.com/getnfig/nfig/store"
	"github.com/getnfig/nfig/values"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := store.New(memory.New(), store.Options{})
	t.Cleanup(s.Close)
	mgr := pubsub.NewManager(s, nil)

	router := httpapi.New(s, mgr, httpapi.Options{
		AdminSecret:   []byte("test-secret"),
		AdminUser:     "admin",
		AdminPassword: "admin-pass",
		TokenTTL:      time.Hour,
	})
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func login(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"user": "admin", "password": "admin-pass"})
	resp, err := http.Post(ts.URL+"/auth/token", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func authedRequest(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var r *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	} else {
		r = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ts := newTestServer(t)
	body, _ := json.Marshal(map[string]string{"user": "admin", "password": "wrong"})
	resp, err := http.Post(ts.URL+"/auth/token", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAppsEndpointRequiresAuth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/apps")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSetOverrideThenSnapshotRoundTrips(t *testing.T) {
	ts := newTestServer(t)
	token := login(t, ts)

	setResp := authedRequest(t, http.MethodPost, ts.URL+"/api/apps/myapp/overrides", token, map[string]any{
		"name":  "Rate",
		"value": "42",
	})
	defer setResp.Body.Close()
	require.Equal(t, http.StatusOK, setResp.StatusCode)

	snapResp := authedRequest(t, http.MethodGet, ts.URL+"/api/apps/myapp/snapshot", token, nil)
	defer snapResp.Body.Close()
	require.Equal(t, http.StatusOK, snapResp.StatusCode)

	var snap values.OverridesSnapshot
	require.NoError(t, json.NewDecoder(snapResp.Body).Decode(&snap))
	require.Len(t, snap.Overrides, 1)
	assert.Equal(t, "Rate", snap.Overrides[0].Name)
}

func TestSetOverrideCommitMismatchReturnsConflict(t *testing.T) {
	ts := newTestServer(t)
	token := login(t, ts)

	resp := authedRequest(t, http.MethodPost, ts.URL+"/api/apps/myapp/overrides", token, map[string]any{
		"name":           "Rate",
		"value":          "1",
		"expectedCommit": "not-the-real-commit",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
