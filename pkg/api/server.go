package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/promptvault/gateway/pkg/auth"
	"github.com/promptvault/gateway/pkg/contextkeys"
	"github.com/promptvault/gateway/pkg/gateway"
	"github.com/promptvault/gateway/pkg/httputil"
	"github.com/promptvault/gateway/pkg/observability"
)

// Server represents the public API server
type Server struct {
	gateway *gateway.Gateway
	router  *mux.Router
	handler http.Handler
	logger  *observability.Logger
	metrics *observability.Metrics
}

// Handler is an endpoint that runs after authentication and rate limiting.
// It returns the response instead of writing it.
type Handler func(r *http.Request, rc *gateway.RouteContext) *httputil.Response

// NewServer creates a new API server
func NewServer(gw *gateway.Gateway, logger *observability.Logger, metrics *observability.Metrics) *Server {
	if logger == nil {
		logger = observability.NopLogger()
	}
	s := &Server{
		gateway: gw,
		router:  mux.NewRouter(),
		logger:  logger,
		metrics: metrics,
	}
	s.setupRoutes()

	s.handler = httputil.Chain(
		httputil.RecoveryMiddleware(logger),
		httputil.MaxBytesMiddleware(httputil.DefaultMaxBodyBytes),
	)(otelhttp.NewHandler(s.router, "gateway"))

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(httputil.LoggingMiddleware(s.logger, s.metrics))

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.Handle("/key", s.Route(auth.ScopeRead, s.getKey)).Methods(http.MethodGet)
	v1.Handle("/apps/{appSlug}", s.Route(auth.ScopeRead, s.getApp)).Methods(http.MethodGet)
	v1.Handle("/apps/{appSlug}/parameters/hash", s.Route(auth.ScopeResolve, s.hashParameters)).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = httputil.Error(httputil.CodeNotFound, "Route not found").Write(w)
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = httputil.Error(httputil.CodeNotFound, "Route not found",
			httputil.WithDetails(map[string]string{"method": r.Method})).Write(w)
	})
}

// Route wraps h with gateway.SetupRoute for requiredScope. The handler only
// runs if authentication and rate limiting both succeed.
func (s *Server) Route(requiredScope auth.Scope, h Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc, failure := s.gateway.SetupRoute(r.Context(), r, requiredScope)
		if failure != nil {
			s.write(w, failure)
			return
		}

		ctx := contextkeys.WithRequestID(r.Context(), rc.RequestID)
		ctx = contextkeys.WithRoute(ctx, rc)
		s.write(w, h(r.WithContext(ctx), rc))
	})
}

// RouteFromContext returns the RouteContext stored by Route
func RouteFromContext(r *http.Request) *gateway.RouteContext {
	rc, _ := r.Context().Value(contextkeys.RouteKey).(*gateway.RouteContext)
	return rc
}

func (s *Server) write(w http.ResponseWriter, resp *httputil.Response) {
	if err := resp.Write(w); err != nil {
		s.logger.WithError(err).WithField("request_id", resp.RequestID()).Debug("failed to write response")
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
