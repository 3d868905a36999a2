package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/bookings-backend/api/responses"
	"github.com/angelmondragon/bookings-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/bookings-backend/pkg/errors"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/bookings-backend/pkg/redis"
)

const (
	idempotencyHeader  = "Idempotency-Key"
	replayedHeader     = "Idempotent-Replayed"
	defaultReplayTTL   = 24 * time.Hour
	maxIdempotencyBody = 64 << 10
)

// idempotencyRecord is stored under the key. A pending record reserves the
// key while the first request is still running; Lease makes each pending
// record unique so only its owner can settle or release it.
type idempotencyRecord struct {
	Pending     bool   `json:"pending,omitempty"`
	Lease       string `json:"lease,omitempty"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency replays the first completed response for a repeated
// Idempotency-Key header on the route it wraps. Requests without the header
// pass through. Keys are scoped per user, method and path. Server errors
// release the key so the client can retry.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultReplayTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if store == nil || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIdempotencyBody))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "request body too large or unreadable"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := hashBody(body)
			key := store.IdempotencyKey(requestScope(r), clientKey)

			pending, claimed, err := claim(ctx, store, key, hash, ttl)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !claimed {
				replayOrReject(ctx, store, key, hash, w, r, next, logg)
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			// The response is already on the wire; store updates must not be
			// cut short by the client hanging up.
			storeCtx := context.WithoutCancel(ctx)
			status := rec.statusOrOK()
			if status >= http.StatusInternalServerError {
				if _, err := store.CompareAndDelete(storeCtx, key, pending); err != nil {
					logg.Error(ctx, "release idempotency key", err)
				}
				return
			}
			final := idempotencyRecord{
				RequestHash: hash,
				Status:      status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			}
			if err := persist(storeCtx, store, key, pending, final, ttl); err != nil {
				logg.Error(ctx, "persist idempotency record", err)
			}
		})
	}
}

// claim reserves key with a pending record and returns the stored value.
func claim(ctx context.Context, store pkgredis.IdempotencyStore, key, hash string, ttl time.Duration) (string, bool, error) {
	raw, err := json.Marshal(idempotencyRecord{Pending: true, Lease: uuid.NewString(), RequestHash: hash})
	if err != nil {
		return "", false, err
	}
	pending := string(raw)
	claimed, err := store.SetNX(ctx, key, pending, ttl)
	return pending, claimed, err
}

func persist(ctx context.Context, store pkgredis.IdempotencyStore, key, pending string, record idempotencyRecord, ttl time.Duration) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	swapped, err := store.CompareAndSet(ctx, key, pending, string(payload), ttl)
	if err != nil {
		return err
	}
	if !swapped {
		return errors.New("idempotency key changed while the request ran")
	}
	return nil
}

func replayOrReject(ctx context.Context, store pkgredis.IdempotencyStore, key, hash string, w http.ResponseWriter, r *http.Request, next http.Handler, logg *logger.Logger) {
	stored, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; run without replay protection.
		next.ServeHTTP(w, r)
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}

	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case record.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "idempotency key reused with different request body"))
	case record.Pending:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is still in progress"))
	default:
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set(replayedHeader, "true")
		w.WriteHeader(record.Status)
		_, _ = w.Write(record.Body)
	}
}

// requestScope ties a key to the caller and route so two users cannot
// collide on the same Idempotency-Key.
func requestScope(r *http.Request) string {
	caller, _ := auth.CallerFrom(r.Context())
	return strings.Join([]string{caller.UserID.String(), r.Method, r.URL.Path}, "|")
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusOrOK() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
