package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/angelmondragon/bookings-backend/pkg/logger"
	"github.com/angelmondragon/bookings-backend/pkg/metrics"
)

// Logging writes one access log line per request and feeds the HTTP metrics.
// The route label is read after the handler ran, once chi has matched it.
func Logging(logg *logger.Logger, httpMetrics *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{"method": r.Method, "path": r.URL.Path})
			}

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))
			took := time.Since(start)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := ""
			if rc := chi.RouteContext(r.Context()); rc != nil {
				route = rc.RoutePattern()
			}
			httpMetrics.Observe(r.Method, route, status, took)

			if logg != nil {
				logg.Info(logg.WithFields(ctx, map[string]any{
					"route":       route,
					"status":      status,
					"bytes":       ww.BytesWritten(),
					"duration_ms": took.Milliseconds(),
				}), "request.complete")
			}
		})
	}
}
