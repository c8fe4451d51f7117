package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid object", `{"tone":"friendly"}`, ""},
		{"empty body", ``, "request body is empty"},
		{"malformed", `{"tone":`, "invalid JSON"},
		{"trailing data", `{"a":"1"} {"b":"2"}`, "unexpected data"},
		{"wrong type", `["a"]`, "invalid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dest map[string]string
			err := ParseJSON(r, &dest)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "friendly", dest["tone"])
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseJSONOrError(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json`))
	var dest map[string]string

	resp := ParseJSONOrError(r, &dest, "req-1", map[string]string{HeaderRateLimitLimit: "10"})
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, "req-1", resp.RequestID())
	assert.Equal(t, "10", resp.Header.Get(HeaderRateLimitLimit))
	assert.Contains(t, string(resp.Body), `"code":"VALIDATION_ERROR"`)

	ok := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	assert.Nil(t, ParseJSONOrError(ok, &dest, "req-2", nil))
}

func TestParsePathString(t *testing.T) {
	r := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"appSlug": "demo"})
	slug, err := ParsePathString(r, "appSlug")
	require.NoError(t, err)
	assert.Equal(t, "demo", slug)

	_, err = ParsePathString(r, "missing")
	assert.Error(t, err)
}

func TestParsePathString_KeepsValueAsSent(t *testing.T) {
	r := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"appSlug": " demo "})
	slug, err := ParsePathString(r, "appSlug")
	require.NoError(t, err)
	assert.Equal(t, " demo ", slug)
}
