package middleware

import (
	"context"

	"go-blog-app/internal/data"
)

// contextKey defines a custom type for context keys to avoid collisions.
type contextKey string

const userContextKey = contextKey("user")

// GetUser retrieves the signed-in user from the request context. It returns
// nil for anonymous requests.
func GetUser(ctx context.Context) *data.User {
	if user, ok := ctx.Value(userContextKey).(*data.User); ok {
		return user
	}
	return nil
}

// SetUser adds the signed-in user to the request context.
func SetUser(ctx context.Context, user *data.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
