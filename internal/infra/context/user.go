package context

import (
	"context"

	"github.com/mkrupp/minisocial/internal/domain"
)

type contextKey string

const contextKeyUser = contextKey("user")

// UserFromContext extracts the authenticated user record from the context.
// Returns the user and true if present, or nil and false if not present.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(contextKeyUser).(*domain.User)

	return user, ok
}

// WithUser creates a new context carrying the resolved user record.
// The authorizing middleware stores the record here for downstream handlers.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, contextKeyUser, user)
}
