// Package httputil provides the uniform success/error response contract of the
// public API, plus JSON request parsing and HTTP middleware.
//
// # Responses
//
// Every response carries Content-Type: application/json and an X-Request-Id.
// Success bodies are the data encoded verbatim; error bodies always have the
// shape
//
//	{"error": {"code": "NOT_FOUND", "message": "App not found: demo"}}
//
// with an optional "details" member. The HTTP status is derived from the code:
//
//	resp := httputil.Error(httputil.CodeScopeRequired, msg,
//		httputil.WithRequestID(requestID),
//		httputil.WithDetails(map[string]string{"required_scope": "resolve"}))
//	resp.Write(w)
//
// Responses are values, so a pipeline stage can return one to stop the chain.
//
// # Request Parsing
//
//	var params map[string]string
//	if failure := httputil.ParseJSONOrError(r, &params, requestID, headers); failure != nil {
//		return failure
//	}
//
// # Middleware
//
// LoggingMiddleware must be attached with mux.Router.Use so that the matched
// route template is available for metric labels.
package httputil
