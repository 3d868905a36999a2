package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/bookings-backend/pkg/logger"
)

// queryLogger routes GORM output through the service logger. Only failed and
// slow statements are reported; record-not-found is an expected outcome.
type queryLogger struct {
	logg *logger.Logger
	slow time.Duration
	mode gormlogger.LogLevel
}

func newQueryLogger(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Discard
	}
	return &queryLogger{logg: logg, slow: slow, mode: gormlogger.Warn}
}

func (q *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *q
	clone.mode = level
	return &clone
}

func (q *queryLogger) Info(ctx context.Context, msg string, args ...any) {
	if q.mode >= gormlogger.Info {
		q.logg.Info(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	if q.mode >= gormlogger.Warn {
		q.logg.Warn(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Error(ctx context.Context, msg string, args ...any) {
	if q.mode >= gormlogger.Error {
		q.logg.Error(ctx, fmt.Sprintf(msg, args...), nil)
	}
}

func (q *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.mode <= gormlogger.Silent {
		return
	}
	took := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := q.slow > 0 && took > q.slow
	if !failed && !slow {
		return
	}

	sql, rows := fc()
	ctx = q.logg.WithFields(ctx, map[string]any{
		"sql":         sql,
		"rows":        rows,
		"duration_ms": took.Milliseconds(),
	})
	switch {
	case failed && q.mode >= gormlogger.Error:
		q.logg.Error(ctx, "db query failed", err)
	case slow && q.mode >= gormlogger.Warn:
		q.logg.Warn(ctx, "slow db query")
	}
}
