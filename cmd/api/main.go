package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/bookings-backend/api/routes"
	"github.com/angelmondragon/bookings-backend/internal/audit"
	"github.com/angelmondragon/bookings-backend/internal/availability"
	"github.com/angelmondragon/bookings-backend/internal/holds"
	"github.com/angelmondragon/bookings-backend/internal/ledger"
	"github.com/angelmondragon/bookings-backend/internal/payments"
	"github.com/angelmondragon/bookings-backend/internal/payments/providers"
	"github.com/angelmondragon/bookings-backend/internal/reservations"
	"github.com/angelmondragon/bookings-backend/internal/resources"
	"github.com/angelmondragon/bookings-backend/internal/vouchers"
	"github.com/angelmondragon/bookings-backend/pkg/bootstrap"
	"github.com/angelmondragon/bookings-backend/pkg/config"
	"github.com/angelmondragon/bookings-backend/pkg/db"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
	"github.com/angelmondragon/bookings-backend/pkg/metrics"
	"github.com/angelmondragon/bookings-backend/pkg/outbox"
)

const shutdownTimeout = 15 * time.Second

func main() {
	proc := bootstrap.Start("api")
	cfg, logg := proc.Config, proc.Logger
	ctx := context.Background()

	dbClient := proc.Database(ctx)
	redisClient := proc.Redis(ctx)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svcs, err := buildServices(cfg, logg, dbClient, registry)
	proc.Must(ctx, "service wiring", err)

	// PORT is injected by Cloud Run and wins over the config value.
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr: ":" + port,
		Handler: routes.NewRouter(routes.Params{
			Config:           cfg,
			Logger:           logg,
			DB:               dbClient,
			Redis:            redisClient,
			IdempotencyStore: redisClient,
			Gatherer:         registry,
			HTTPMetrics:      metrics.NewHTTPMetrics(registry),
			Services:         svcs,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := proc.RunContext(map[string]any{"addr": server.Addr})
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(runCtx, "api server listening")
		serveErr <- server.ListenAndServe()
	}()

	failed := false
	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "api server stopped unexpectedly", err)
			failed = true
		}
	case <-runCtx.Done():
		logg.Info(runCtx, "api server draining")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(runCtx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(runCtx, "http shutdown incomplete", err)
		failed = true
	}
	if proc.Close(runCtx) != nil || failed {
		os.Exit(1)
	}
	logg.Info(runCtx, "api server stopped")
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, reg prometheus.Registerer) (routes.Services, error) {
	conn := dbClient.DB()
	reservationRepo := reservations.NewRepository(conn)

	recorder, err := audit.NewRecorder(conn, logg)
	if err != nil {
		return routes.Services{}, err
	}

	availabilitySvc, err := availability.NewService(resources.NewRepository(conn), reservationRepo, cfg.Availability, logg)
	if err != nil {
		return routes.Services{}, err
	}

	holdsSvc, err := holds.NewService(holds.ServiceParams{
		Store:     reservationRepo,
		Audit:     recorder,
		Logger:    logg,
		Metrics:   metrics.NewHoldSweepMetrics(reg),
		BatchSize: cfg.Holds.SweepBatchSize,
	})
	if err != nil {
		return routes.Services{}, err
	}

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn), cfg.Payments.RawPayloadMaxBytes)
	if err != nil {
		return routes.Services{}, err
	}
	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		Providers: providers.NewRegistry(
			providers.NewStripe(cfg.Stripe.WebhookSecret, cfg.Stripe.SignatureTolerance),
			providers.NewSquare(cfg.Square.WebhookSecret),
		),
		Ledger:            ledgerSvc,
		TransactionRunner: dbClient,
		Outbox:            outbox.NewService(outbox.NewRepository(conn), logg),
		Audit:             recorder,
		Logger:            logg,
		Metrics:           metrics.NewPaymentWebhookMetrics(reg),
		UpdateMaxAttempts: cfg.Payments.UpdateMaxAttempts,
	})
	if err != nil {
		return routes.Services{}, err
	}

	vouchersSvc, err := vouchers.NewService(vouchers.ServiceParams{
		Reservations: reservationRepo,
		Vouchers:     vouchers.NewRepository(conn),
		Audit:        recorder,
		Logger:       logg,
		Metrics:      metrics.NewVoucherMetrics(reg),
		Config:       cfg.Vouchers,
	})
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Availability: availabilitySvc,
		Holds:        holdsSvc,
		Payments:     paymentsSvc,
		Vouchers:     vouchersSvc,
	}, nil
}
