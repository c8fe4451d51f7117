package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/promptvault/gateway/pkg/api"
	"github.com/promptvault/gateway/pkg/auth"
	"github.com/promptvault/gateway/pkg/config"
	"github.com/promptvault/gateway/pkg/gateway"
	"github.com/promptvault/gateway/pkg/observability"
	"github.com/promptvault/gateway/pkg/ratelimit"
	"github.com/promptvault/gateway/pkg/storage"
	"github.com/promptvault/gateway/pkg/storage/postgres"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).
		WithField("service", cfg.Observability.OTelServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = observability.NewMetrics(registry)
	}

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	db, err := postgres.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	logger.Info("Connected to key store")

	var keyStore auth.KeyStore = postgres.NewKeyStore(db)
	if cfg.Storage.KeyCacheTTL > 0 {
		keyStore = storage.NewCachedKeyStore(keyStore, cfg.Storage.KeyCacheSize, cfg.Storage.KeyCacheTTL, metrics)
		logger.Infof("Credential cache enabled (size=%d, ttl=%s)", cfg.Storage.KeyCacheSize, cfg.Storage.KeyCacheTTL)
	}

	redisClient, err := ratelimit.NewRedisClient(ratelimit.RedisOptions{
		URL:      cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
		Timeout:  cfg.RateLimit.StoreTimeout,
	})
	if err != nil {
		db.Close()
		return err
	}
	counterStore := ratelimit.NewRedisCounterStore(redisClient)
	if err := counterStore.Ping(ctx); err != nil {
		// Not fatal: the limiter applies its failure mode until Redis is back
		logger.WithError(err).Warn("Counter store unreachable at startup")
	}

	plans := ratelimit.DefaultPlanTable()
	if cfg.RateLimit.PlansFile != "" {
		if plans, err = ratelimit.LoadPlanTable(cfg.RateLimit.PlansFile); err != nil {
			closeStores(logger, db, redisClient)
			return err
		}
		logger.Infof("Loaded plan limits from %s", cfg.RateLimit.PlansFile)
	}

	limiter, err := ratelimit.NewLimiter(counterStore, ratelimit.Config{
		Plans:        plans,
		FailureMode:  cfg.RateLimit.FailureMode,
		Prefix:       cfg.RateLimit.Prefix,
		StoreTimeout: cfg.RateLimit.StoreTimeout,
	}, logger, metrics)
	if err != nil {
		closeStores(logger, db, redisClient)
		return err
	}

	authenticator := auth.NewAuthenticator(keyStore, auth.AuthenticatorConfig{
		StoreTimeout: cfg.RateLimit.StoreTimeout,
		TouchTimeout: cfg.RateLimit.TouchTimeout,
	}, logger, metrics)

	gw := gateway.New(authenticator, limiter, postgres.NewAppStore(db), gateway.Config{
		StoreTimeout: cfg.RateLimit.StoreTimeout,
	}, logger)

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewServer(gw, logger, metrics),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	checker := observability.NewHealthChecker(db, observability.PingFunc(counterStore.Ping), version)
	observability.RegisterHealthRoutes(healthMux, checker, metrics)
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	shutdown.Register("api server", apiServer.Shutdown)
	shutdown.Register("health server", healthServer.Shutdown)
	shutdown.Register("pending key updates", authenticator.Shutdown)
	shutdown.Register("telemetry", providers.Shutdown)
	shutdown.Register("counter store", func(context.Context) error { return redisClient.Close() })
	shutdown.Register("key store", func(context.Context) error { return db.Close() })

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Starting API server on %s", apiServer.Addr)
		return serve(apiServer)
	})
	g.Go(func() error {
		logger.Infof("Starting health server on %s", healthServer.Addr)
		return serve(healthServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Starting graceful shutdown")
		return shutdown.Shutdown(context.Background())
	})

	return g.Wait()
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", srv.Addr, err)
	}
	return nil
}

func closeStores(logger *observability.Logger, db *sql.DB, client *redis.Client) {
	if err := client.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close counter store")
	}
	if err := db.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close key store")
	}
}
