package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/SpiritGreen/mushroom-checker-backend/api/controllers"
	"github.com/SpiritGreen/mushroom-checker-backend/api/routes"
	"github.com/SpiritGreen/mushroom-checker-backend/internal/admission"
	"github.com/SpiritGreen/mushroom-checker-backend/internal/artifacts"
	"github.com/SpiritGreen/mushroom-checker-backend/internal/catalog"
	"github.com/SpiritGreen/mushroom-checker-backend/internal/jobs"
	"github.com/SpiritGreen/mushroom-checker-backend/internal/ledger"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/config"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/db"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/logger"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/migrate"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/queue"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		requireResource(ctx, logg, "dev migrations", err)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	queueClient, err := queue.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub client", err)
		}
	}()

	store, err := artifacts.NewStore(cfg.Artifacts.Dir)
	requireResource(ctx, logg, "artifact store", err)

	ledgerService, err := ledger.NewService(dbClient, ledger.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "ledger service", err)

	jobsService, err := jobs.NewService(jobs.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "jobs service", err)

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "catalog service", err)

	publisher, err := queue.NewJobPublisher(queueClient.PredictionsPublisher())
	requireResource(ctx, logg, "job publisher", err)

	admissionService, err := admission.NewService(
		dbClient,
		catalogService,
		ledgerService,
		jobsService,
		store,
		publisher,
		logg,
	)
	requireResource(ctx, logg, "admission service", err)

	readiness := map[string]controllers.Pinger{
		"database": dbClient,
		"redis":    redisClient,
		"pubsub":   queueClient,
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, redisClient, readiness, admissionService, jobsService, catalogService, ledgerService),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	logg.Info(runCtx, "api server ready")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(runCtx, "graceful shutdown failed", err)
			os.Exit(1)
		}
		logg.Info(runCtx, "api server shut down")
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
