package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/bookings-backend/api/responses"
	"github.com/angelmondragon/bookings-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/bookings-backend/pkg/errors"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
)

type tokenVerifier interface {
	Verify(raw string) (auth.Caller, error)
}

// Auth admits requests carrying a valid bearer token and stores the caller
// on the request context.
func Auth(verifier tokenVerifier, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			raw, ok := bearerToken(r)
			if !ok {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			caller, err := verifier.Verify(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx = auth.WithCaller(ctx, caller)
			ctx = logg.WithUserID(ctx, caller.UserID.String())
			ctx = logg.WithActorRole(ctx, string(caller.Role))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
