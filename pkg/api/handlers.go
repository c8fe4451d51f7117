package api

import (
	"net/http"

	"github.com/promptvault/gateway/pkg/auth"
	"github.com/promptvault/gateway/pkg/gateway"
	"github.com/promptvault/gateway/pkg/httputil"
)

// getKey returns the identity of the calling key
func (s *Server) getKey(r *http.Request, rc *gateway.RouteContext) *httputil.Response {
	return rc.Success(rc.Auth)
}

type appResponse struct {
	AppID string `json:"app_id"`
	Slug  string `json:"slug"`
}

// getApp resolves an app slug for the calling key
func (s *Server) getApp(r *http.Request, rc *gateway.RouteContext) *httputil.Response {
	slug, err := httputil.ParsePathString(r, "appSlug")
	if err != nil {
		return rc.Error(httputil.CodeValidationError, err.Error())
	}

	appID, failure := s.gateway.ResolveApp(r.Context(), slug, rc)
	if failure != nil {
		return failure
	}
	return rc.Success(appResponse{AppID: appID, Slug: slug})
}

type hashResponse struct {
	AppID string `json:"app_id"`
	Hash  string `json:"hash"`
}

// hashParameters returns the deduplication digest of a parameter set
func (s *Server) hashParameters(r *http.Request, rc *gateway.RouteContext) *httputil.Response {
	slug, err := httputil.ParsePathString(r, "appSlug")
	if err != nil {
		return rc.Error(httputil.CodeValidationError, err.Error())
	}

	appID, failure := s.gateway.ResolveApp(r.Context(), slug, rc)
	if failure != nil {
		return failure
	}

	var params map[string]string
	if failure := httputil.ParseJSONOrError(r, &params, rc.RequestID, rc.RateLimitHeaders); failure != nil {
		return failure
	}
	if params == nil {
		return rc.Error(httputil.CodeValidationError, "Request body must be a JSON object")
	}

	hash, err := auth.HashParameters(params)
	if err != nil {
		return rc.Error(httputil.CodeValidationError, "Invalid parameters", httputil.WithDetails(err.Error()))
	}
	return rc.Success(hashResponse{AppID: appID, Hash: hash})
}
