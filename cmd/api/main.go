package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/visionhub/internal/auth"
	"github.com/geocoder89/visionhub/internal/config"
	"github.com/geocoder89/visionhub/internal/db"
	httpx "github.com/geocoder89/visionhub/internal/http"
	"github.com/geocoder89/visionhub/internal/http/handlers"
	"github.com/geocoder89/visionhub/internal/identity"
	"github.com/geocoder89/visionhub/internal/lookup"
	"github.com/geocoder89/visionhub/internal/metadata"
	"github.com/geocoder89/visionhub/internal/observability"
	"github.com/geocoder89/visionhub/internal/redisclient"
	"github.com/geocoder89/visionhub/internal/repo/memory"
	"github.com/geocoder89/visionhub/internal/repo/postgres"
	"github.com/geocoder89/visionhub/internal/rpc"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type userStore interface {
	identity.AdminStore
	handlers.UserLookup
}

func main() {
	// Load the config set up
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTelExporterEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(ctx, cfg.ServiceName, cfg.Env, cfg.OTelExporterEndpoint)
		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}
		defer func() {
			c, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			if err := shutdownTracer(c); err != nil {
				log.Error("tracer flush failed", "err", err)
			}
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(reg)

	outbound := &http.Client{
		Timeout:   cfg.OutboundTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	checks := map[string]handlers.PingFunc{}

	// storage
	var (
		pool     *pgxpool.Pool
		projects handlers.ProjectsStore
		users    userStore
	)

	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		log.Warn("using in-memory storage; data is lost on restart")
		projects = memory.NewProjectsRepo()
		users = memory.NewUsersRepo()
	case config.StoreBackendPostgres:
		if cfg.AutoMigrate {
			if err := db.MigrateUp(cfg.DBURL); err != nil {
				log.Error("migrations failed", "err", err)
				os.Exit(1)
			}
		}

		p, err := db.NewPool(cfg.DBURL)
		if err != nil {
			log.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		pool = p
		defer pool.Close()

		projects = postgres.NewProjectsRepo(pool, prom)
		users = postgres.NewUsersRepo(pool, prom)
		checks["postgres"] = pool.Ping
	default:
		log.Error("unknown store backend", "backend", cfg.StoreBackend)
		os.Exit(1)
	}

	verifier, err := newVerifier(cfg, outbound, log, prom)
	if err != nil {
		log.Error("identity verifier init failed", "err", err)
		os.Exit(1)
	}
	resolver := identity.NewResolver(verifier, users, log)

	seedCtx, cancelSeed := config.WithTimeout(5 * time.Second)
	if err := identity.EnsureAdminUser(seedCtx, users, cfg); err != nil {
		log.Error("admin seed failed", "err", err)
	}
	cancelSeed()

	// metadata cache is optional
	var metaCache metadata.Cache
	if cfg.RedisAddr != "" {
		rc := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() {
			if err := rc.Close(); err != nil {
				log.Error("redis close failed", "err", err)
			}
		}()
		metaCache = metadata.NewRedisCache(rc.Raw())
		checks["redis"] = rc.Ping
	}

	if cfg.RPCMode == config.RPCModeOff {
		log.Warn("no rpc backend configured; procedure calls will fail", "store", cfg.StoreBackend)
	}
	caller, err := newRPCCaller(cfg, pool, outbound, prom)
	if err != nil {
		log.Error("rpc caller init failed", "err", err)
		os.Exit(1)
	}
	gateway := rpc.NewGateway(rpc.MustRegistry(rpc.DefaultProcedures()...), caller, log)

	fetcher := metadata.NewFetcher(metadata.Config{
		ServiceURL: cfg.MetadataAPIURL,
		APIKey:     cfg.MetadataAPIKey,
		FaviconURL: cfg.FaviconAPIURL,
		CacheTTL:   cfg.MetadataCacheTTL,
		Timeout:    cfg.OutboundTimeout,
	}, outbound, metaCache, log, prom)

	health := handlers.NewHealthHandler(checks)

	router := httpx.NewRouter(log, cfg, httpx.Dependencies{
		Projects: projects,
		Users:    users,
		Resolver: resolver,
		Gateway:  gateway,
		Metadata: fetcher,
		Lookups:  lookup.NewStore(cfg.LookupDir, cfg.LookupCacheTTL),
		Prom:     prom,
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Health:   health,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreBackend)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("server shutting down")
	health.Drain()

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		c, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(c); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")
	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}

func newVerifier(cfg config.Config, client *http.Client, log *slog.Logger, prom *observability.Prom) (identity.TokenVerifier, error) {
	switch cfg.AuthMode {
	case config.AuthModeJWKS:
		return auth.NewJWKSVerifier(auth.JWKSConfig{
			URL:      cfg.AuthJWKSURL,
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
		}, client, log, prom)
	case config.AuthModeHMAC:
		log.Warn("using shared-secret identity tokens; not for production")
		return auth.NewHMACVerifier(cfg.AuthHMACSecret, cfg.AuthIssuer, time.Hour)
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.AuthMode)
	}
}

func newRPCCaller(cfg config.Config, pool *pgxpool.Pool, client *http.Client, prom *observability.Prom) (rpc.Caller, error) {
	switch cfg.RPCMode {
	case config.RPCModeREST:
		if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
			return nil, fmt.Errorf("rest rpc mode needs SUPABASE_URL and SUPABASE_KEY")
		}
		return rpc.NewRESTCaller(cfg.SupabaseURL, cfg.SupabaseKey, client, prom), nil
	case config.RPCModePostgres:
		if pool == nil {
			return nil, fmt.Errorf("postgres rpc mode needs the postgres store backend")
		}
		return rpc.NewPostgresCaller(pool, cfg.RPCSchema, prom), nil
	case config.RPCModeOff:
		return rpc.UnavailableCaller{}, nil
	default:
		return nil, fmt.Errorf("unknown rpc mode %q", cfg.RPCMode)
	}
}
