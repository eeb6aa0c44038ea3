package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keystock/keystock-backend/api/controllers"
	"github.com/keystock/keystock-backend/api/middleware"
	"github.com/keystock/keystock-backend/internal/accessories"
	"github.com/keystock/keystock-backend/internal/auth"
	"github.com/keystock/keystock-backend/internal/usage"
	"github.com/keystock/keystock-backend/internal/users"
	"github.com/keystock/keystock-backend/pkg/auth/session"
	"github.com/keystock/keystock-backend/pkg/config"
	"github.com/keystock/keystock-backend/pkg/db/models"
	"github.com/keystock/keystock-backend/pkg/enums"
	"github.com/keystock/keystock-backend/pkg/logger"
	"github.com/keystock/keystock-backend/pkg/metrics"
	pkgredis "github.com/keystock/keystock-backend/pkg/redis"
)

type lowStockSource interface {
	LowStock(ctx context.Context) ([]models.Accessory, error)
}

// Deps bundles everything the HTTP surface needs. Redis, Sessions, Registry
// and HTTPMetrics are optional.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	Location    *time.Location
	DB          controllers.Pinger
	Redis       *pkgredis.Client
	Sessions    session.AccessSessionChecker
	Registry    *prometheus.Registry
	HTTPMetrics *metrics.HTTPMetrics

	Auth        auth.Service
	Accessories accessories.Service
	Alerts      lowStockSource
	Usage       usage.Service
	Users       users.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)
	if deps.HTTPMetrics != nil {
		r.Use(middleware.Metrics(deps.HTTPMetrics))
	}

	// Optional redis-backed collaborators must stay untyped nil when redis is
	// off so the middlewares see a nil interface.
	var (
		limiter     middleware.RateLimiterStore
		idempotency pkgredis.IdempotencyStore
		readiness   = map[string]controllers.Pinger{"database": deps.DB}
	)
	if deps.Redis != nil {
		limiter = deps.Redis
		idempotency = deps.Redis
		readiness["redis"] = deps.Redis
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginUsernameLimit,
	)
	idem := middleware.Idempotency(idempotency, logg)
	adminOnly := middleware.RequireRole(enums.RoleAdmin, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})

	if deps.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{Registry: deps.Registry}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(loginPolicy, limiter, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
				r.Get("/me", controllers.AuthMe(deps.Auth, logg))
				r.Post("/logout", controllers.AuthLogout(deps.Auth, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))

			r.Route("/accessories", func(r chi.Router) {
				r.Get("/", controllers.ListAccessories(deps.Accessories, logg))
				r.Get("/search", controllers.SearchAccessories(deps.Accessories, logg))
				r.Get("/alerts", controllers.LowStockAlerts(deps.Alerts, logg))

				r.Group(func(r chi.Router) {
					r.Use(adminOnly)
					r.With(idem).Post("/", controllers.CreateAccessory(deps.Accessories, logg))
					r.Put("/{id}", controllers.UpdateAccessory(deps.Accessories, logg))
					r.With(idem).Delete("/{id}", controllers.DeleteAccessory(deps.Accessories, logg))
				})
			})

			r.Route("/usage", func(r chi.Router) {
				r.With(idem).Post("/", controllers.RegisterUsage(deps.Usage, loc, logg))
				r.Get("/", controllers.UsageHistory(deps.Usage, loc, logg))
				r.Patch("/{id}/flag", controllers.ToggleUsageFlag(deps.Usage, loc, logg))

				r.Group(func(r chi.Router) {
					r.Use(adminOnly)
					r.With(idem).Put("/{id}", controllers.UpdateUsage(deps.Usage, loc, logg))
					r.With(idem).Delete("/{id}", controllers.DeleteUsage(deps.Usage, loc, logg))
				})
			})

			r.Route("/users", func(r chi.Router) {
				r.Use(adminOnly)
				r.Get("/", controllers.ListUsers(deps.Users, logg))
				r.Post("/", controllers.CreateUser(deps.Users, logg))
				r.Put("/{id}", controllers.UpdateUser(deps.Users, logg))
				r.Delete("/{id}", controllers.DeleteUser(deps.Users, logg))
			})
		})
	})

	return r
}
