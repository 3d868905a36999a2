package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/angelmondragon/bookings-backend/pkg/env"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Field keys shared across services so dashboards can filter on them.
const (
	FieldRequestID     = "request_id"
	FieldUserID        = "user_id"
	FieldActorRole     = "actor_role"
	FieldReservationID = "reservation_id"
	FieldProvider      = "provider"
)

// Options configures the structured logger. An empty Format falls back to
// BOOKINGS_LOG_FORMAT and then to JSON.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	WarnStack   bool
	Format      string
	Output      io.Writer
}

// Logger wraps zerolog and carries per-request fields through the context.
// A nil *Logger discards everything.
type Logger struct {
	base      zerolog.Logger
	warnStack bool
}

type ctxKey struct{}

func New(opts Options) *Logger {
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = env.Get(env.EnvLogFormat, FormatJSON)
	}
	if format == FormatConsole {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	base := zerolog.New(out).
		Level(opts.Level).
		With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger()
	return &Logger{base: base, warnStack: opts.WarnStack}
}

// ParseLevel maps a config string to a level, defaulting to info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) entry(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if scoped, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok {
			return scoped
		}
	}
	return &l.base
}

func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	if l == nil || len(fields) == 0 {
		return ctx
	}
	if ctx == nil {
		ctx = context.Background()
	}
	scoped := l.entry(ctx).With().Fields(fields).Logger()
	return context.WithValue(ctx, ctxKey{}, &scoped)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.WithFields(ctx, map[string]any{key: value})
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, FieldRequestID, requestID)
}

func (l *Logger) WithUserID(ctx context.Context, userID string) context.Context {
	return l.WithField(ctx, FieldUserID, userID)
}

func (l *Logger) WithActorRole(ctx context.Context, role string) context.Context {
	return l.WithField(ctx, FieldActorRole, role)
}

func (l *Logger) WithReservationID(ctx context.Context, reservationID string) context.Context {
	return l.WithField(ctx, FieldReservationID, reservationID)
}

// WithProvider tags entries with the payment provider a webhook came from.
func (l *Logger) WithProvider(ctx context.Context, provider string) context.Context {
	return l.WithField(ctx, FieldProvider, provider)
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	if l == nil {
		return
	}
	l.entry(ctx).Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	if l == nil {
		return
	}
	l.entry(ctx).Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	if l == nil {
		return
	}
	ev := l.entry(ctx).Warn()
	if l.warnStack {
		ev = ev.Str("stack", stackTrace())
	}
	ev.Msg(msg)
}

// Error always records a stack; err may be nil.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	if l == nil {
		return
	}
	ev := l.entry(ctx).Error().Str("stack", stackTrace())
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg(msg)
}

func stackTrace() string {
	return strings.TrimSpace(string(debug.Stack()))
}
