package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	"github.com/raildesk/raildesk/pkg/api"
	"github.com/raildesk/raildesk/pkg/audit"
	"github.com/raildesk/raildesk/pkg/config"
	"github.com/raildesk/raildesk/pkg/identity"
	"github.com/raildesk/raildesk/pkg/idp"
	"github.com/raildesk/raildesk/pkg/middleware"
	"github.com/raildesk/raildesk/pkg/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "raildesk-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithField("port", cfg.Server.Port).Info("starting raildesk server")

	ctx := context.Background()

	// Database
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxConns)
	db.SetMaxIdleConns(cfg.Database.MinConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	db.SetConnMaxIdleTime(cfg.Database.MaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnTimeout)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := identity.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("database migrations applied")

	// Redis is optional; without it rate limiting is per-instance
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid redis URL: %w", err)
		}
		if cfg.Redis.Password != "" {
			opts.Password = cfg.Redis.Password
		}
		opts.DB = cfg.Redis.DB
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable at startup; continuing without it")
		}
	}

	// Metrics
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(nil)
	}

	// Identity provider
	verifier, err := idp.NewOIDCVerifier(ctx, idp.OIDCConfig{
		IssuerURL:     cfg.IdP.IssuerURL,
		ClientID:      cfg.IdP.ClientID,
		VerifyTimeout: cfg.IdP.VerifyTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize token verifier: %w", err)
	}

	var adminClient idp.AdminClient
	if cfg.IdP.AdminAPIURL != "" {
		adminClient, err = idp.NewRESTAdminClient(ctx, idp.RESTAdminConfig{
			BaseURL:       cfg.IdP.AdminAPIURL,
			ClientID:      cfg.IdP.AdminClientID,
			ClientSecret:  cfg.IdP.AdminClientSecret,
			TokenEndpoint: cfg.IdP.TokenEndpoint,
			Timeout:       cfg.IdP.ClaimTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize provider admin client: %w", err)
		}
	} else {
		logger.Warn("provider admin API not configured; claim sync and staff provisioning run local-only")
	}

	// Identity core
	store := identity.NewPostgresStore(db)
	auditor, err := audit.NewDBRecorder(db)
	if err != nil {
		return fmt.Errorf("failed to initialize audit recorder: %w", err)
	}
	allowList := identity.NewAllowList(cfg.Auth.PrivilegedEmails)

	var claims idp.ClaimManager
	if adminClient != nil {
		claims = adminClient
	}
	reconciler := identity.NewReconciler(store, allowList, claims, auditor, logger, metrics)
	reconciler.SetClaimTimeout(cfg.IdP.ClaimTimeout)

	// Ensure the designated administrator exists before serving traffic
	var provisioner idp.AccountProvisioner
	if adminClient != nil {
		provisioner = adminClient
	}
	bootstrapper := identity.NewBootstrapper(store, provisioner, claims, auditor, logger,
		cfg.Auth.AdminEmail, cfg.Auth.AdminPassword)
	if err := bootstrapper.EnsureAdmin(ctx); err != nil {
		return fmt.Errorf("admin bootstrap failed: %w", err)
	}

	// HTTP surface
	server := api.NewServer(store, adminClient, auditor, logger)

	authn := middleware.NewAuthenticator(verifier, reconciler, allowList, middleware.AuthenticatorOptions{
		Logger:      logger,
		Metrics:     metrics,
		ExemptPaths: cfg.Auth.ExemptPaths,
	})

	var handler http.Handler = server
	if redisClient != nil {
		handler = middleware.NewDistributedRateLimitMiddleware(redisClient).Handler(handler)
	} else {
		handler = middleware.NewRateLimitMiddleware().Handler(handler)
	}
	handler = authn.Handler(handler)
	handler = middleware.NewRequestContext(logger, metrics).Handler(handler)
	handler = observability.PanicRecoveryMiddleware(logger)(handler)

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes
	healthChecker := observability.NewHealthChecker(db, redisClient)
	opsMux := http.NewServeMux()
	observability.RegisterHealthRoutes(opsMux, healthChecker)
	if metrics != nil {
		opsMux.Handle("/metrics", metrics.Handler())
	}
	opsServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: opsMux,
	}

	go func() {
		logger.WithField("port", cfg.Server.HealthPort).Info("health/metrics server listening")
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	if metrics != nil {
		go reportDBStats(ctx, db, metrics)
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return opsServer.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return db.Close()
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return redisClient.Close()
		})
	}

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("API server failed")
			os.Exit(1)
		}
	}()

	return shutdown.WaitForShutdown()
}

// reportDBStats samples connection pool gauges
func reportDBStats(ctx context.Context, db *sql.DB, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			stats := db.Stats()
			metrics.DBConnectionsActive.Set(float64(stats.InUse))
			metrics.DBConnectionsIdle.Set(float64(stats.Idle))
		case <-ctx.Done():
			return
		}
	}
}
