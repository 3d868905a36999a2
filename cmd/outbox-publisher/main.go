package main

import (
	"context"
	"errors"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/bookings-backend/pkg/bootstrap"
	"github.com/angelmondragon/bookings-backend/pkg/metrics"
	"github.com/angelmondragon/bookings-backend/pkg/outbox"
	"github.com/angelmondragon/bookings-backend/pkg/outbox/registry"
	"github.com/angelmondragon/bookings-backend/pkg/pubsub"
)

func main() {
	proc := bootstrap.Start("outbox-publisher")
	cfg, logg := proc.Config, proc.Logger
	ctx := context.Background()

	dbClient := proc.Database(ctx)
	pubsubClient := proc.PubSub(ctx, pubsub.PublisherRequirements(cfg.PubSub))

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	proc.Must(ctx, "event registry", err)

	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      eventRegistry,
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Metrics:       metrics.NewOutboxPublishMetrics(prometheus.DefaultRegisterer),
	})
	proc.Must(ctx, "outbox publisher", err)

	runCtx, stop := proc.RunContext(map[string]any{"topics": eventRegistry.Topics()})
	defer stop()
	logg.Info(runCtx, "outbox publisher started")

	runErr := service.Run(runCtx)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	if runErr != nil {
		logg.Error(runCtx, "outbox publisher stopped unexpectedly", runErr)
	}
	if proc.Close(runCtx) != nil || runErr != nil {
		os.Exit(1)
	}
	logg.Info(runCtx, "outbox publisher stopped")
}
