package gateway

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/promptvault/gateway/pkg/auth"
	"github.com/promptvault/gateway/pkg/httputil"
	"github.com/promptvault/gateway/pkg/observability"
	"github.com/promptvault/gateway/pkg/ratelimit"
	"github.com/promptvault/gateway/pkg/storage"
)

const tracerName = "github.com/promptvault/gateway/pkg/gateway"

// RouteContext is what a handler gets once a request has passed
// authentication and rate limiting. It lives for one request.
type RouteContext struct {
	RequestID string
	Auth      *auth.AuthContext
	// RateLimitHeaders are echoed on the handler's response
	RateLimitHeaders map[string]string
}

// Success builds a success response stamped with the request ID and
// rate limit headers
func (rc *RouteContext) Success(data interface{}, opts ...httputil.Option) *httputil.Response {
	return httputil.Success(data, rc.options(opts)...)
}

// Error builds an error response stamped with the request ID and rate
// limit headers
func (rc *RouteContext) Error(code httputil.ErrorCode, message string, opts ...httputil.Option) *httputil.Response {
	return httputil.Error(code, message, rc.options(opts)...)
}

func (rc *RouteContext) options(opts []httputil.Option) []httputil.Option {
	base := []httputil.Option{
		httputil.WithRequestID(rc.RequestID),
		httputil.WithHeaders(rc.RateLimitHeaders),
	}
	return append(base, opts...)
}

// Config configures a Gateway
type Config struct {
	// StoreTimeout bounds the app lookup
	StoreTimeout time.Duration
	// Now overrides the clock used for Retry-After, for tests
	Now func() time.Time
}

// Gateway runs the per-request chain shared by every endpoint:
// authenticate, rate limit, then optionally resolve the app.
type Gateway struct {
	authenticator *auth.Authenticator
	limiter       *ratelimit.Limiter
	apps          storage.AppStore
	config        Config
	logger        *observability.Logger
	tracer        trace.Tracer
}

// New creates a new Gateway
func New(authenticator *auth.Authenticator, limiter *ratelimit.Limiter, apps storage.AppStore, config Config, logger *observability.Logger) *Gateway {
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = 2 * time.Second
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Gateway{
		authenticator: authenticator,
		limiter:       limiter,
		apps:          apps,
		config:        config,
		logger:        logger,
		tracer:        otel.Tracer(tracerName),
	}
}

// SetupRoute authenticates r, requiring requiredScope when it is not
// empty, and applies the key's rate limits. Exactly one of the results is
// non-nil; a non-nil response must be written as is.
func (g *Gateway) SetupRoute(ctx context.Context, r *http.Request, requiredScope auth.Scope) (*RouteContext, *httputil.Response) {
	requestID := httputil.NewRequestID()

	ctx, span := g.tracer.Start(ctx, "gateway.SetupRoute", trace.WithAttributes(
		attribute.String("request.id", requestID),
		attribute.String("auth.required_scope", string(requiredScope)),
	))
	defer span.End()

	result := g.authenticator.Authenticate(ctx, r, requestID, requiredScope)
	if !result.OK() {
		span.SetStatus(codes.Error, "authentication failed")
		span.SetAttributes(attribute.Int("http.status_code", result.Failure.Status))
		return nil, result.Failure
	}
	authCtx := result.Context
	span.SetAttributes(
		attribute.String("auth.api_key_id", authCtx.APIKeyID),
		attribute.String("auth.workspace_id", authCtx.WorkspaceID),
		attribute.String("auth.plan", string(authCtx.WorkspacePlan)),
	)

	logger := g.logger.WithFields(map[string]interface{}{
		"request_id":   requestID,
		"api_key_id":   authCtx.APIKeyID,
		"workspace_id": authCtx.WorkspaceID,
	})

	decision, err := g.limiter.Check(ctx, authCtx.APIKeyID, authCtx.WorkspacePlan)
	if err != nil {
		logger.WithError(err).Error("rate limit check failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate limiter unavailable")
		return nil, httputil.Error(httputil.CodeServiceUnavailable,
			"Rate limiting is temporarily unavailable, please retry later",
			httputil.WithRequestID(requestID),
			httputil.WithHeaders(decision.Headers()))
	}
	span.SetAttributes(attribute.Bool("ratelimit.degraded", decision.Degraded))

	headers := decision.Headers()
	if !decision.Allowed {
		span.SetStatus(codes.Error, "rate limit exceeded")
		logger.WithField("monthly", decision.Monthly).Info("rate limit exceeded")
		return nil, g.rateLimited(requestID, decision, headers)
	}

	return &RouteContext{
		RequestID:        requestID,
		Auth:             authCtx,
		RateLimitHeaders: headers,
	}, nil
}

// ResolveApp looks up appSlug in the caller's workspace and enforces
// app-restricted keys. Exactly one of the results is non-empty.
func (g *Gateway) ResolveApp(ctx context.Context, appSlug string, rc *RouteContext) (string, *httputil.Response) {
	lookupCtx, cancel := context.WithTimeout(ctx, g.config.StoreTimeout)
	defer cancel()

	app, err := g.apps.FindBySlug(lookupCtx, rc.Auth.WorkspaceID, appSlug)
	if errors.Is(err, storage.ErrNotFound) {
		return "", rc.Error(httputil.CodeNotFound, fmt.Sprintf("App not found: %s", appSlug))
	}
	if err != nil {
		g.logger.WithError(err).WithFields(map[string]interface{}{
			"request_id": rc.RequestID,
			"app_slug":   appSlug,
		}).Error("app lookup failed")
		return "", rc.Error(httputil.CodeInternalError, "Internal server error")
	}

	// Scopes say which action; the app restriction says which app
	if rc.Auth.AppID != nil && *rc.Auth.AppID != app.ID {
		return "", rc.Error(httputil.CodeForbidden, "This API key is restricted to a different app")
	}

	return app.ID, nil
}

func (g *Gateway) rateLimited(requestID string, decision ratelimit.Result, headers map[string]string) *httputil.Response {
	message := "Rate limit exceeded"
	if decision.Monthly {
		message = "Monthly request limit exceeded"
	}

	retryAfter := math.Ceil(decision.Reset.Sub(g.config.Now()).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	withRetry := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		withRetry[k] = v
	}
	withRetry["Retry-After"] = strconv.FormatInt(int64(retryAfter), 10)

	return httputil.Error(httputil.CodeRateLimitExceeded, message,
		httputil.WithRequestID(requestID),
		httputil.WithHeaders(withRetry),
		httputil.WithDetails(map[string]interface{}{
			"limit":     decision.Limit,
			"remaining": 0,
			"reset":     decision.Reset.UnixMilli(),
		}),
	)
}
