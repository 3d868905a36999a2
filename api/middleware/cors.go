package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS applies the browser origin policy for the booking UI. Provider
// webhooks are server to server and never send preflights.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", idempotencyHeader, requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, replayedHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}
	return cors.New(policy).Handler
}
