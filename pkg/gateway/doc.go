// Package gateway is the request pipeline in front of every public endpoint.
//
// SetupRoute runs the same chain for each request:
//
//  1. mint a request ID
//  2. authenticate the Bearer key and check the required scope
//  3. check the per-minute and per-month limits of the workspace plan
//
// The first stage to fail produces the response and the rest are skipped, so
// rate limit counters are never touched for unauthenticated requests. On
// success the handler receives a RouteContext whose Success and Error helpers
// stamp the request ID and X-RateLimit-* headers on whatever it returns.
//
// ResolveApp is the optional fourth stage for app-scoped endpoints.
package gateway
