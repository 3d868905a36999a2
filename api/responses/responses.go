package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/angelmondragon/bookings-backend/pkg/errors"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
)

// SuccessEnvelope wraps every 2xx body.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public shape of a failure. Message is the caller-facing
// text for 4xx codes and a generic phrase otherwise.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, SuccessEnvelope{Data: data})
}

// WriteError maps err to its HTTP status and logs it. Untyped errors are
// treated as internal and their text never reaches the client.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("error reported without cause")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())
	serverSide := meta.HTTPStatus >= http.StatusInternalServerError

	apiErr := APIError{
		Code:      string(typed.Code()),
		Message:   meta.PublicMessage,
		Retryable: meta.Retryable,
	}
	if msg := typed.Message(); !serverSide && msg != "" {
		apiErr.Message = msg
	}
	if meta.DetailsAllowed {
		apiErr.Details = typed.Details()
	}

	logCtx := logg.WithFields(ctx, pkgerrors.Dump(err).Fields())
	if serverSide {
		logg.Error(logCtx, "request.error", err)
	} else {
		logg.Warn(logCtx, "request.rejected")
	}

	writeJSON(w, meta.HTTPStatus, ErrorEnvelope{Error: apiErr})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; an encode failure can only be a broken connection.
	_ = json.NewEncoder(w).Encode(payload)
}
