package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptvault/gateway/pkg/auth"
	"github.com/promptvault/gateway/pkg/gateway"
	"github.com/promptvault/gateway/pkg/httputil"
	"github.com/promptvault/gateway/pkg/observability"
	"github.com/promptvault/gateway/pkg/ratelimit"
	"github.com/promptvault/gateway/pkg/storage"
)

const (
	readKey    = "pv_test_AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	resolveKey = "pv_live_BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"
)

type mockKeyStore map[string]*auth.APIKeyCredential

func (m mockKeyStore) FindByHash(ctx context.Context, keyHash string) (*auth.APIKeyCredential, error) {
	if cred, ok := m[keyHash]; ok {
		return cred, nil
	}
	return nil, auth.ErrKeyNotFound
}

func (m mockKeyStore) TouchLastUsed(ctx context.Context, keyID string, at time.Time) error {
	return nil
}

type mockAppStore map[string]*storage.App

func (m mockAppStore) FindBySlug(ctx context.Context, workspaceID, slug string) (*storage.App, error) {
	app, ok := m[workspaceID+"/"+slug]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return app, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := ratelimit.NewRedisClient(ratelimit.RedisOptions{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	supportBot := "app-1"
	keys := mockKeyStore{
		auth.HashAPIKey(readKey): {
			ID: "key-read", WorkspaceID: "ws-1", WorkspacePlan: auth.PlanFree,
			Scopes: []auth.Scope{auth.ScopeRead},
		},
		auth.HashAPIKey(resolveKey): {
			ID: "key-resolve", WorkspaceID: "ws-1", WorkspacePlan: auth.PlanTeam,
			Scopes: []auth.Scope{auth.ScopeRead, auth.ScopeResolve}, AppID: &supportBot,
		},
	}
	apps := mockAppStore{
		"ws-1/support-bot": {ID: "app-1", WorkspaceID: "ws-1", Slug: "support-bot"},
		"ws-1/sales-bot":   {ID: "app-2", WorkspaceID: "ws-1", Slug: "sales-bot"},
	}

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	authenticator := auth.NewAuthenticator(keys, auth.DefaultAuthenticatorConfig(), nil, metrics)
	t.Cleanup(authenticator.Wait)

	limiter, err := ratelimit.NewLimiter(ratelimit.NewRedisCounterStore(client), ratelimit.Config{}, nil, metrics)
	require.NoError(t, err)

	return NewServer(gateway.New(authenticator, limiter, apps, gateway.Config{}, nil), nil, metrics)
}

func do(t *testing.T, server *Server, method, path, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httputil.APIError {
	t.Helper()
	var body httputil.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestGetKey(t *testing.T) {
	server := newTestServer(t)

	rec := do(t, server, http.MethodGet, "/v1/key", readKey, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body auth.AuthContext
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "key-read", body.APIKeyID)
	assert.Equal(t, "ws-1", body.WorkspaceID)
	assert.Equal(t, auth.PlanFree, body.WorkspacePlan)
	assert.Nil(t, body.AppID)

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(httputil.HeaderRequestID))
	assert.Equal(t, "10", rec.Header().Get(httputil.HeaderRateLimitLimit))
	assert.Equal(t, "9", rec.Header().Get(httputil.HeaderRateLimitRemaining))
	assert.NotEmpty(t, rec.Header().Get(httputil.HeaderRateLimitReset))
}

func TestGetKey_Unauthenticated(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name string
		key  string
	}{
		{name: "no header", key: ""},
		{name: "malformed key", key: "not-a-key"},
		{name: "unknown key", key: "pv_test_CCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, server, http.MethodGet, "/v1/key", tt.key, "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, httputil.CodeUnauthorized, decodeError(t, rec).Code)
			assert.NotEmpty(t, rec.Header().Get(httputil.HeaderRequestID))
			assert.Empty(t, rec.Header().Get(httputil.HeaderRateLimitLimit))
		})
	}
}

func TestGetKey_RateLimited(t *testing.T) {
	server := newTestServer(t)

	for i := 0; i < 10; i++ {
		rec := do(t, server, http.MethodGet, "/v1/key", readKey, "")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	rec := do(t, server, http.MethodGet, "/v1/key", readKey, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, httputil.CodeRateLimitExceeded, decodeError(t, rec).Code)
	assert.Equal(t, "0", rec.Header().Get(httputil.HeaderRateLimitRemaining))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Other keys have their own window
	rec = do(t, server, http.MethodGet, "/v1/key", resolveKey, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetApp(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name       string
		key        string
		slug       string
		wantStatus int
		wantAppID  string
		wantCode   httputil.ErrorCode
	}{
		{name: "unrestricted key", key: readKey, slug: "sales-bot", wantStatus: http.StatusOK, wantAppID: "app-2"},
		{name: "restricted key on its app", key: resolveKey, slug: "support-bot", wantStatus: http.StatusOK, wantAppID: "app-1"},
		{name: "restricted key on another app", key: resolveKey, slug: "sales-bot", wantStatus: http.StatusForbidden, wantCode: httputil.CodeForbidden},
		{name: "unknown app", key: readKey, slug: "ghost", wantStatus: http.StatusNotFound, wantCode: httputil.CodeNotFound},
		{name: "padded slug is not trimmed", key: readKey, slug: "%20sales-bot", wantStatus: http.StatusNotFound, wantCode: httputil.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, server, http.MethodGet, "/v1/apps/"+tt.slug, tt.key, "")
			require.Equal(t, tt.wantStatus, rec.Code)
			assert.NotEmpty(t, rec.Header().Get(httputil.HeaderRateLimitLimit))

			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
				return
			}
			var body appResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantAppID, body.AppID)
			assert.Equal(t, tt.slug, body.Slug)
		})
	}
}

func TestHashParameters(t *testing.T) {
	server := newTestServer(t)
	path := "/v1/apps/support-bot/parameters/hash"

	t.Run("digest of the canonical form", func(t *testing.T) {
		rec := do(t, server, http.MethodPost, path, resolveKey, `{"b":"2","a":"1"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var body hashResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "app-1", body.AppID)
		assert.Equal(t, "21f76dfbfe6dfe21f762080ef484112cf2952974cef30741fd1931e1c6d92112", body.Hash)
	})

	t.Run("requires resolve scope", func(t *testing.T) {
		rec := do(t, server, http.MethodPost, path, readKey, `{"a":"1"}`)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, httputil.CodeScopeRequired, decodeError(t, rec).Code)
	})

	t.Run("app is checked before the body", func(t *testing.T) {
		rec := do(t, server, http.MethodPost, "/v1/apps/ghost/parameters/hash", resolveKey, `not json`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid JSON", body: `{"a":`},
		{name: "non-string values", body: `{"a":1}`},
		{name: "trailing data", body: `{"a":"1"} {}`},
		{name: "null body", body: `null`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, server, http.MethodPost, path, resolveKey, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, httputil.CodeValidationError, decodeError(t, rec).Code)
			assert.NotEmpty(t, rec.Header().Get(httputil.HeaderRateLimitLimit))
		})
	}
}

func TestRouteNotFound(t *testing.T) {
	server := newTestServer(t)

	rec := do(t, server, http.MethodGet, "/nope", readKey, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	apiErr := decodeError(t, rec)
	assert.Equal(t, httputil.CodeNotFound, apiErr.Code)
	assert.Equal(t, "Route not found", apiErr.Message)
}

func TestRouteFromContext(t *testing.T) {
	server := newTestServer(t)

	var seen *gateway.RouteContext
	h := server.Route(auth.ScopeRead, func(r *http.Request, rc *gateway.RouteContext) *httputil.Response {
		seen = RouteFromContext(r)
		return rc.Success(map[string]bool{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/custom", nil)
	req.Header.Set("Authorization", "Bearer "+readKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, rec.Header().Get(httputil.HeaderRequestID), seen.RequestID)
	assert.Equal(t, "key-read", seen.Auth.APIKeyID)

	assert.Nil(t, RouteFromContext(httptest.NewRequest(http.MethodGet, "/", nil)))
}
