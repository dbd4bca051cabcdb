package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vantage-app/licensing-backend/api/controllers"
	"github.com/vantage-app/licensing-backend/api/middleware"
	"github.com/vantage-app/licensing-backend/internal/contracts"
	"github.com/vantage-app/licensing-backend/internal/licenses"
	"github.com/vantage-app/licensing-backend/internal/reconciliation"
	"github.com/vantage-app/licensing-backend/pkg/config"
	"github.com/vantage-app/licensing-backend/pkg/db"
	"github.com/vantage-app/licensing-backend/pkg/logger"
	"github.com/vantage-app/licensing-backend/pkg/metrics"
	"github.com/vantage-app/licensing-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	httpMetrics *metrics.HTTPMetrics,
	metricsHandler http.Handler,
	licenseService licenses.Service,
	contractService contracts.Service,
	reconcileService reconciliation.Service,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(),
	)

	activationPolicy := middleware.NewRateLimitPolicy(
		"activation",
		cfg.RateLimit.ActivationWindow,
		cfg.RateLimit.ActivationIPLimit,
		cfg.RateLimit.ActivationCodeLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api/public/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(activationPolicy, redisClient, logg)).
			Post("/activations", controllers.ActivationCreate(licenseService, logg))
		r.Get("/licenses/{code}/status", controllers.LicenseStatus(licenseService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/contracts", func(r chi.Router) {
			r.Get("/", controllers.ContractList(contractService, logg))
			r.Post("/", controllers.ContractCreate(contractService, logg))
			r.Get("/{contractID}/licenses", controllers.ContractLicenses(contractService, logg))
			r.Patch("/{contractID}", controllers.ContractUpdate(contractService, logg))
			r.Delete("/{contractID}", controllers.ContractDelete(contractService, logg))
		})

		r.Route("/licenses", func(r chi.Router) {
			r.Patch("/{licenseID}", controllers.LicenseUpdateClient(licenseService, logg))
			r.Post("/{licenseID}/unbind", controllers.LicenseUnbind(licenseService, logg))
		})

		r.Patch("/admin/licenses/{licenseID}", controllers.LicenseAdminUpdate(licenseService, logg))

		r.Post("/billing/reconcile", controllers.BillingReconcile(reconcileService, logg))
	})

	return r
}
