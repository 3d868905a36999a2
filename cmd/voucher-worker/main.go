package main

import (
	"context"
	"errors"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/bookings-backend/internal/audit"
	"github.com/angelmondragon/bookings-backend/internal/reservations"
	"github.com/angelmondragon/bookings-backend/internal/vouchers"
	"github.com/angelmondragon/bookings-backend/pkg/bootstrap"
	"github.com/angelmondragon/bookings-backend/pkg/metrics"
	"github.com/angelmondragon/bookings-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/bookings-backend/pkg/pubsub"
)

func main() {
	proc := bootstrap.Start("voucher-worker")
	cfg, logg := proc.Config, proc.Logger
	ctx := context.Background()

	dbClient := proc.Database(ctx)
	redisClient := proc.Redis(ctx)
	pubsubClient := proc.PubSub(ctx, pubsub.VoucherWorkerRequirements(cfg.PubSub))

	recorder, err := audit.NewRecorder(dbClient.DB(), logg)
	proc.Must(ctx, "audit recorder", err)

	issuer, err := vouchers.NewService(vouchers.ServiceParams{
		Reservations: reservations.NewRepository(dbClient.DB()),
		Vouchers:     vouchers.NewRepository(dbClient.DB()),
		Audit:        recorder,
		Logger:       logg,
		Metrics:      metrics.NewVoucherMetrics(prometheus.DefaultRegisterer),
		Config:       cfg.Vouchers,
	})
	proc.Must(ctx, "voucher service", err)

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
	proc.Must(ctx, "idempotency manager", err)

	consumer, err := vouchers.NewConsumer(issuer, pubsubClient.VoucherSubscription(), manager, logg)
	proc.Must(ctx, "voucher consumer", err)

	service, err := NewService(ServiceParams{
		Logger:   logg,
		DB:       dbClient,
		Redis:    redisClient,
		PubSub:   pubsubClient,
		Consumer: consumer,
	})
	proc.Must(ctx, "voucher worker", err)

	runCtx, stop := proc.RunContext(map[string]any{"subscription": cfg.PubSub.VoucherSubscription})
	defer stop()
	logg.Info(runCtx, "voucher worker started")

	runErr := service.Run(runCtx)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	if runErr != nil {
		logg.Error(runCtx, "voucher worker stopped unexpectedly", runErr)
	}
	if proc.Close(runCtx) != nil || runErr != nil {
		os.Exit(1)
	}
	logg.Info(runCtx, "voucher worker stopped")
}
