// Package auth provides API key authentication for the PromptVault gateway.
//
// # Overview
//
// This package holds the credential codec (key generation, key and parameter
// hashing) and the Authenticator that turns a Bearer token into an
// AuthContext. Keys are never stored: the key store holds their SHA-256
// digest and lookups go by digest.
//
// # Key Format
//
//	pv_<env>_<base64url(32 random bytes)>
//
//	key, err := auth.GenerateAPIKey(auth.EnvironmentLive)
//	hash := auth.HashAPIKey(key) // store this, show key once
//
// # Scopes
//
//	ScopeRead    - Read prompts and blueprints
//	ScopeResolve - Resolve prompts with parameters
//	ScopeWrite   - Create and update resources
//	ScopeAdmin   - Satisfies every scope check
//
// # Authentication
//
//	authenticator := auth.NewAuthenticator(store, auth.DefaultAuthenticatorConfig(), logger, metrics)
//	result := authenticator.Authenticate(ctx, r, requestID, auth.ScopeRead)
//	if !result.OK() {
//		return result.Failure
//	}
//
// A successful authentication schedules a last-used update that outlives the
// request. Call Wait during shutdown to let pending updates finish.
package auth
