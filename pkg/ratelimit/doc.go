// Package ratelimit enforces the per-plan request ceilings of API keys.
//
// Each request is checked against two limits. The per-minute limit is a
// sliding log kept in a Redis sorted set, so a burst cannot straddle a
// fixed window boundary. The per-month limit is a plain counter keyed by the
// UTC calendar month, created with a TTL that outlives the month.
//
// The monthly counter is only incremented for requests the minute window
// admitted. When Redis cannot be reached the FailureMode decides: FailOpen
// admits the request with an estimated Remaining and marks the result
// Degraded, FailClosed returns ErrCounterStoreUnavailable.
//
// Counter keys:
//
//	<prefix>:minute:<plan>:<api_key_id>
//	<prefix>:month:<api_key_id>:<YYYY-MM>
package ratelimit
