package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/bookings-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/bookings-backend/api/controllers/webhooks"
	"github.com/angelmondragon/bookings-backend/api/middleware"
	"github.com/angelmondragon/bookings-backend/internal/availability"
	"github.com/angelmondragon/bookings-backend/internal/holds"
	"github.com/angelmondragon/bookings-backend/internal/payments"
	"github.com/angelmondragon/bookings-backend/internal/vouchers"
	"github.com/angelmondragon/bookings-backend/pkg/auth"
	"github.com/angelmondragon/bookings-backend/pkg/config"
	"github.com/angelmondragon/bookings-backend/pkg/enums"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
	"github.com/angelmondragon/bookings-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/bookings-backend/pkg/redis"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Services are the domain entry points exposed over HTTP.
type Services struct {
	Availability availability.Service
	Holds        holds.Service
	Payments     payments.Service
	Vouchers     vouchers.Service
}

// Params carries what the router wires into handlers. Gatherer and
// HTTPMetrics are optional.
type Params struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               pinger
	Redis            pinger
	IdempotencyStore pkgredis.IdempotencyStore
	Gatherer         prometheus.Gatherer
	HTTPMetrics      *metrics.HTTPMetrics
	Services         Services
}

func NewRouter(p Params) http.Handler {
	cfg, logg, svcs := p.Config, p.Logger, p.Services

	r := chi.NewRouter()
	// Logging wraps Recoverer so recovered panics still get an access line.
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg, p.HTTPMetrics),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public/v1", func(r chi.Router) {
		r.Get("/resources/{resourceId}/availability", controllers.ResourceAvailability(svcs.Availability, logg))
	})

	// Providers authenticate with signatures, not bearer tokens.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(svcs.Payments, logg))
		r.Post("/square", webhookcontrollers.SquareWebhook(svcs.Payments, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(auth.NewVerifier(cfg.JWT), logg))

		r.With(middleware.Idempotency(p.IdempotencyStore, cfg.Vouchers.IdempotencyTTL, logg)).
			Post("/api/v1/reservations/{reservationId}/voucher", controllers.IssueVoucher(svcs.Vouchers, logg))

		r.Route("/api/admin/v1", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
			r.Post("/holds/sweep", controllers.AdminSweepHolds(svcs.Holds, logg))
		})
	})

	return r
}
