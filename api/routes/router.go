package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/SpiritGreen/mushroom-checker-backend/api/controllers"
	"github.com/SpiritGreen/mushroom-checker-backend/api/middleware"
	"github.com/SpiritGreen/mushroom-checker-backend/internal/admission"
	"github.com/SpiritGreen/mushroom-checker-backend/internal/catalog"
	"github.com/SpiritGreen/mushroom-checker-backend/internal/jobs"
	"github.com/SpiritGreen/mushroom-checker-backend/internal/ledger"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/config"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/logger"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	readiness map[string]controllers.Pinger,
	admissionService admission.Service,
	jobsService jobs.Service,
	catalogService catalog.Service,
	ledgerService ledger.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Post("/predictions", controllers.PredictionsSubmit(admissionService, logg))
		r.Get("/predictions", controllers.PredictionsList(jobsService, logg))
		r.Get("/predictions/{jobId}", controllers.PredictionsGet(jobsService, logg))

		r.Get("/models", controllers.ModelsList(catalogService, logg))

		r.Get("/account", controllers.AccountGet(ledgerService, logg))
		r.Get("/account/transactions", controllers.AccountTransactions(ledgerService, logg))
		r.Post("/account/topup", controllers.AccountTopup(ledgerService, logg))
	})

	return r
}
