// Package api exposes the gateway over HTTP.
//
// Every endpoint is registered through Server.Route, which runs
// gateway.SetupRoute before any handler code. Handlers return an
// *httputil.Response instead of writing to the ResponseWriter, so
// authentication failures and rate limit rejections are written the same
// way as handler results.
//
// Endpoints:
//
//	GET  /v1/key                              identity of the calling key (read)
//	GET  /v1/apps/{appSlug}                   resolve an app slug (read)
//	POST /v1/apps/{appSlug}/parameters/hash   parameter set digest (resolve)
package api
