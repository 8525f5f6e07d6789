package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/SpiritGreen/mushroom-checker-backend/internal/artifacts"
	"github.com/SpiritGreen/mushroom-checker-backend/internal/catalog"
	"github.com/SpiritGreen/mushroom-checker-backend/internal/jobs"
	"github.com/SpiritGreen/mushroom-checker-backend/internal/worker"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/config"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/db"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/instance"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/logger"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/metrics"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/queue"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "failed to close database client", err)
		}
	}()

	queueClient, err := queue.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	store, err := artifacts.NewStore(cfg.Artifacts.Dir)
	requireResource(ctx, logg, "artifact store", err)

	jobsService, err := jobs.NewService(jobs.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "jobs service", err)

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "catalog service", err)

	subscription := queueClient.PredictionsSubscription()
	if subscription == nil {
		requireResource(ctx, logg, "predictions subscription", errors.New("subscription not configured"))
	}

	workerMetrics := metrics.NewWorkerMetrics(prometheus.DefaultRegisterer)

	consumer, err := worker.NewConsumer(
		subscription,
		jobsService,
		catalogService,
		store,
		workerMetrics,
		cfg.Worker,
		logg,
	)
	requireResource(ctx, logg, "prediction consumer", err)

	service, err := newService(consumer, logg, map[string]pinger{
		"database": dbClient,
		"pubsub":   queueClient,
	})
	requireResource(ctx, logg, "worker service", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
	})
	logg.Info(runCtx, "prediction worker ready")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "prediction worker failed", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
