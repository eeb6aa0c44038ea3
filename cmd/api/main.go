package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/keystock/keystock-backend/api/routes"
	"github.com/keystock/keystock-backend/internal/accessories"
	"github.com/keystock/keystock-backend/internal/alerts"
	"github.com/keystock/keystock-backend/internal/auth"
	"github.com/keystock/keystock-backend/internal/usage"
	"github.com/keystock/keystock-backend/internal/users"
	"github.com/keystock/keystock-backend/pkg/auth/session"
	"github.com/keystock/keystock-backend/pkg/config"
	"github.com/keystock/keystock-backend/pkg/db"
	"github.com/keystock/keystock-backend/pkg/instance"
	"github.com/keystock/keystock-backend/pkg/logger"
	"github.com/keystock/keystock-backend/pkg/metrics"
	"github.com/keystock/keystock-backend/pkg/migrate"
	"github.com/keystock/keystock-backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.App.Location()
	if err != nil {
		logg.Error(ctx, "invalid timezone", err)
		os.Exit(1)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRun(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run migrations", err)
		os.Exit(1)
	}

	userRepo := users.NewRepository(dbClient.DB())
	admin, generated, err := users.EnsureDefaultAdmin(ctx, userRepo, cfg.Seed, cfg.Password)
	if err != nil {
		logg.Error(ctx, "failed to seed default admin", err)
		os.Exit(1)
	}
	if admin != nil {
		seedCtx := logg.WithField(ctx, "username", admin.Username)
		if cfg.Seed.AdminPassword == "" {
			seedCtx = logg.WithField(seedCtx, "generated_password", generated)
			logg.Warn(seedCtx, "default admin created with a generated password; change it after first login")
		} else {
			logg.Info(seedCtx, "default admin created")
		}
	}

	var (
		redisClient    *redis.Client
		sessionManager *session.Manager
	)
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()

		sessionManager, err = session.NewManager(redisClient, cfg.JWT)
		if err != nil {
			logg.Error(ctx, "failed to create session manager", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(ctx, "redis disabled: stateless tokens, no refresh, no login rate limiting")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	stockMetrics := metrics.NewStockMetrics(registry)

	authParams := auth.ServiceParams{
		UserRepo:       userRepo,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	}
	if sessionManager != nil {
		authParams.SessionManager = sessionManager
	}
	authService, err := auth.NewService(authParams)
	if err != nil {
		logg.Error(ctx, "failed to create auth service", err)
		os.Exit(1)
	}

	userService, err := users.NewService(userRepo, dbClient, cfg.Password)
	if err != nil {
		logg.Error(ctx, "failed to create user service", err)
		os.Exit(1)
	}

	accessoryRepo := accessories.NewRepository(dbClient.DB())
	accessoryService, err := accessories.NewService(accessoryRepo, dbClient)
	if err != nil {
		logg.Error(ctx, "failed to create accessory service", err)
		os.Exit(1)
	}

	evaluator, err := alerts.NewEvaluator(accessoryRepo, stockMetrics)
	if err != nil {
		logg.Error(ctx, "failed to create alert evaluator", err)
		os.Exit(1)
	}

	reconciler, err := usage.NewReconciler(accessoryRepo)
	if err != nil {
		logg.Error(ctx, "failed to create stock reconciler", err)
		os.Exit(1)
	}
	usageService, err := usage.NewService(usage.ServiceParams{
		Repo:        usage.NewRepository(dbClient.DB()),
		Reconciler:  reconciler,
		Tx:          dbClient,
		Metrics:     stockMetrics,
		Logger:      logg,
		Location:    loc,
		MaxQuantity: cfg.Ledger.MaxUsageQty,
	})
	if err != nil {
		logg.Error(ctx, "failed to create usage service", err)
		os.Exit(1)
	}

	deps := routes.Deps{
		Config:      cfg,
		Logger:      logg,
		Location:    loc,
		DB:          dbClient,
		Redis:       redisClient,
		Auth:        authService,
		Accessories: accessoryService,
		Alerts:      evaluator,
		Usage:       usageService,
		Users:       userService,
	}
	if sessionManager != nil {
		deps.Sessions = sessionManager
	}
	if cfg.FeatureFlags.Metrics {
		deps.Registry = registry
		deps.HTTPMetrics = metrics.NewHTTPMetrics(registry)
	}

	addr := ":" + cfg.App.Port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"driver":   cfg.DB.Driver,
		"timezone": loc.String(),
		"instance": instance.GetID(),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "graceful shutdown failed", err)
		}
	}
}
