package userctx

import (
	"context"

	"github.com/nkiryanov/authservice/internal/models"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// Create a new context with claims of authenticated user
func New(ctx context.Context, c models.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// Extract claims of authenticated user from the context
func FromContext(ctx context.Context) (models.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(models.Claims)
	return c, ok
}
