package middleware

import (
	"context"

	"github.com/baharkarakas/credits-backend/internal/models"
)

type userKey struct{}

// WithUser binds the resolved user row to the request context.
func WithUser(ctx context.Context, u models.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

func UserFrom(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(userKey{}).(models.User)
	return u, ok
}
