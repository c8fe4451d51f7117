package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/promptvault/gateway/pkg/async"
	"github.com/promptvault/gateway/pkg/httputil"
	"github.com/promptvault/gateway/pkg/observability"
)

const bearerPrefix = "Bearer "

// ErrKeyNotFound is returned by a KeyStore when no key matches a hash
var ErrKeyNotFound = errors.New("api key not found")

// KeyStore looks up API keys by hash and records their use
type KeyStore interface {
	// FindByHash returns the credential whose stored digest equals keyHash,
	// or ErrKeyNotFound.
	FindByHash(ctx context.Context, keyHash string) (*APIKeyCredential, error)
	// TouchLastUsed records that the key was used at the given time
	TouchLastUsed(ctx context.Context, keyID string, at time.Time) error
}

// AuthenticatorConfig configures an Authenticator
type AuthenticatorConfig struct {
	// StoreTimeout bounds the key lookup
	StoreTimeout time.Duration
	// TouchTimeout bounds the background last-used update
	TouchTimeout time.Duration
	// Now overrides the clock, for tests
	Now func() time.Time
}

// DefaultAuthenticatorConfig returns default authenticator settings
func DefaultAuthenticatorConfig() AuthenticatorConfig {
	return AuthenticatorConfig{
		StoreTimeout: 2 * time.Second,
		TouchTimeout: 5 * time.Second,
		Now:          time.Now,
	}
}

// Result is the outcome of Authenticate. Exactly one of Context and
// Failure is set.
type Result struct {
	Context *AuthContext
	Failure *httputil.Response
}

// OK reports whether authentication succeeded
func (r Result) OK() bool {
	return r.Context != nil
}

// Authenticator validates Bearer API keys against a KeyStore
type Authenticator struct {
	store   KeyStore
	config  AuthenticatorConfig
	logger  *observability.Logger
	metrics *observability.Metrics

	touches *async.Tasks
}

// NewAuthenticator creates a new authenticator
func NewAuthenticator(store KeyStore, config AuthenticatorConfig, logger *observability.Logger, metrics *observability.Metrics) *Authenticator {
	defaults := DefaultAuthenticatorConfig()
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = defaults.StoreTimeout
	}
	if config.TouchTimeout <= 0 {
		config.TouchTimeout = defaults.TouchTimeout
	}
	if config.Now == nil {
		config.Now = defaults.Now
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &Authenticator{
		store:   store,
		config:  config,
		logger:  logger,
		metrics: metrics,
		touches: async.NewTasks(config.TouchTimeout, func(string) { metrics.RecordKeyTouchFailure() }),
	}
}

// Authenticate checks the Authorization header of r. requiredScope may be
// empty, in which case any valid key is accepted. Denials are returned as a
// ready error response carrying requestID.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request, requestID string, requiredScope Scope) Result {
	logger := a.logger.WithField("request_id", requestID)

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return a.deny(logger, "missing_header", httputil.CodeUnauthorized,
			"Missing or invalid Authorization header. Expected: Bearer <api_key>", requestID, nil)
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if token == "" {
		return a.deny(logger, "empty_key", httputil.CodeUnauthorized, "API key is empty", requestID, nil)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, a.config.StoreTimeout)
	defer cancel()

	cred, err := a.store.FindByHash(lookupCtx, HashAPIKey(token))
	if errors.Is(err, ErrKeyNotFound) || (err == nil && cred == nil) {
		// Unknown and malformed keys get the same answer
		return a.deny(logger, "invalid_key", httputil.CodeUnauthorized, "Invalid API key", requestID, nil)
	}
	if err != nil {
		logger.WithError(err).Error("API key lookup failed")
		a.metrics.RecordAuthResult("store_error")
		return Result{Failure: httputil.Error(httputil.CodeInternalError, "Internal server error",
			httputil.WithRequestID(requestID))}
	}

	logger = logger.WithFields(map[string]interface{}{
		"api_key_id":   cred.ID,
		"workspace_id": cred.WorkspaceID,
	})

	now := a.config.Now()
	if cred.Expired(now) {
		return a.deny(logger, "expired", httputil.CodeKeyExpired, "API key has expired", requestID, nil)
	}

	if requiredScope != "" && !hasScope(cred.Scopes, requiredScope) {
		return a.deny(logger, "scope_required", httputil.CodeScopeRequired,
			fmt.Sprintf("This API key does not have the '%s' scope", requiredScope), requestID,
			map[string]string{"required_scope": string(requiredScope)})
	}

	a.touchLastUsed(ctx, logger, cred.ID, now)

	a.metrics.RecordAuthResult("ok")
	return Result{Context: NewAuthContext(cred)}
}

// Wait blocks until all pending last-used updates have finished
func (a *Authenticator) Wait() {
	a.touches.Wait()
}

// Shutdown waits for pending last-used updates until ctx is done
func (a *Authenticator) Shutdown(ctx context.Context) error {
	return a.touches.WaitContext(ctx)
}

func (a *Authenticator) deny(logger *observability.Logger, reason string, code httputil.ErrorCode, message, requestID string, details interface{}) Result {
	logger.WithField("reason", reason).Debug("API key rejected")
	a.metrics.RecordAuthResult(reason)

	opts := []httputil.Option{httputil.WithRequestID(requestID)}
	if details != nil {
		opts = append(opts, httputil.WithDetails(details))
	}
	return Result{Failure: httputil.Error(code, message, opts...)}
}

// touchLastUsed updates the key's last-used time in the background. The
// request never waits for it and its failures only show up in logs and metrics.
func (a *Authenticator) touchLastUsed(parent context.Context, logger *observability.Logger, keyID string, at time.Time) {
	a.touches.Go(parent, logger, "api key last-used update", func(ctx context.Context) error {
		return a.store.TouchLastUsed(ctx, keyID, at)
	})
}
