package main

import (
	"context"
	"errors"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/bookings-backend/internal/audit"
	"github.com/angelmondragon/bookings-backend/internal/cron"
	"github.com/angelmondragon/bookings-backend/internal/holds"
	"github.com/angelmondragon/bookings-backend/internal/reservations"
	"github.com/angelmondragon/bookings-backend/pkg/bootstrap"
	"github.com/angelmondragon/bookings-backend/pkg/config"
	"github.com/angelmondragon/bookings-backend/pkg/db"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
	"github.com/angelmondragon/bookings-backend/pkg/metrics"
	"github.com/angelmondragon/bookings-backend/pkg/outbox"
)

func main() {
	proc := bootstrap.Start("cron-worker")
	cfg, logg := proc.Config, proc.Logger
	ctx := context.Background()

	dbClient := proc.Database(ctx)
	redisClient := proc.Redis(ctx)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), proc.Instance, 0)
	proc.Must(ctx, "cron lock", err)

	jobs, err := buildJobs(cfg, logg, dbClient)
	proc.Must(ctx, "cron jobs", err)
	registry, err := cron.NewRegistry(jobs...)
	proc.Must(ctx, "cron registry", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Holds.SweepInterval,
	})
	proc.Must(ctx, "cron service", err)

	runCtx, stop := proc.RunContext(map[string]any{"interval": cfg.Holds.SweepInterval.String()})
	defer stop()
	logg.Info(runCtx, "cron worker started")

	runErr := service.Run(runCtx)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	if runErr != nil {
		logg.Error(runCtx, "cron worker stopped unexpectedly", runErr)
	}
	if proc.Close(runCtx) != nil || runErr != nil {
		os.Exit(1)
	}
	logg.Info(runCtx, "cron worker stopped")
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) ([]cron.Job, error) {
	recorder, err := audit.NewRecorder(dbClient.DB(), logg)
	if err != nil {
		return nil, err
	}
	sweeper, err := holds.NewService(holds.ServiceParams{
		Store:     reservations.NewRepository(dbClient.DB()),
		Audit:     recorder,
		Logger:    logg,
		Metrics:   metrics.NewHoldSweepMetrics(prometheus.DefaultRegisterer),
		BatchSize: cfg.Holds.SweepBatchSize,
	})
	if err != nil {
		return nil, err
	}

	holdExpiry, err := cron.NewHoldExpiryJob(cron.HoldExpiryJobParams{
		Logger:    logg,
		Sweeper:   sweeper,
		BatchSize: cfg.Holds.SweepBatchSize,
	})
	if err != nil {
		return nil, err
	}
	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:           logg,
		DB:               dbClient,
		Repository:       outbox.NewRepository(dbClient.DB()),
		TerminalAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}
	return []cron.Job{holdExpiry, outboxRetention}, nil
}

// lockName scopes the cron lock per environment so staging and prod
// workers sharing a redis do not exclude each other.
func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}
