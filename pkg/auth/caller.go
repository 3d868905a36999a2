package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/bookings-backend/pkg/enums"
)

// Caller is the authenticated identity behind a request.
type Caller struct {
	UserID uuid.UUID
	Role   enums.Role
}

func (c Caller) valid() bool {
	return c.UserID != uuid.Nil && c.Role.IsValid()
}

type callerKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom reports the caller stored by WithCaller, if any.
func CallerFrom(ctx context.Context) (Caller, bool) {
	if ctx == nil {
		return Caller{}, false
	}
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok && c.valid()
}
