package auth

import (
	"context"

	"github.com/clinicops/visitdesk/internal/users"
)

type ctxKey string

const userKey ctxKey = "visitdesk.user"

// WithUser stores the authenticated user in context.
func WithUser(ctx context.Context, user *users.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext extracts the authenticated user if present.
func UserFromContext(ctx context.Context) (*users.User, bool) {
	user, ok := ctx.Value(userKey).(*users.User)
	return user, ok && user != nil
}
