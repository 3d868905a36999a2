package audit

import (
	"context"
	"fmt"

	"github.com/angelmondragon/bookings-backend/pkg/logger"
)

// BestEffort runs a side effect whose failure must not change the caller's
// outcome. Errors and panics are logged under op and dropped.
func BestEffort(ctx context.Context, logg *logger.Logger, op string, fn func(context.Context) error) {
	defer func() {
		if rec := recover(); rec != nil && logg != nil {
			logg.Error(logg.WithField(ctx, "op", op), "best-effort side effect panicked", fmt.Errorf("panic: %v", rec))
		}
	}()

	if err := fn(ctx); err != nil && logg != nil {
		logg.Error(logg.WithField(ctx, "op", op), "best-effort side effect failed", err)
	}
}
