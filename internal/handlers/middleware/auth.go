package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/nkiryanov/authservice/internal/handlers/render"
	"github.com/nkiryanov/authservice/internal/handlers/userctx"
	"github.com/nkiryanov/authservice/internal/models"
)

const bearerScheme = "Bearer"

type authenticator interface {
	Authenticate(ctx context.Context, access string) (models.Claims, error)
}

// Read access token from 'Authorization: Bearer <token>' header
// Empty string if header is missed or has other scheme
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return ""
	}
	return strings.TrimSpace(token)
}

// Let the request through only with valid access token
// Claims of the token are put in the request context, see userctx.FromContext
func AuthMiddleware(a authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := a.Authenticate(r.Context(), bearerToken(r))
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := userctx.New(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Let the request through only if the user has one of the roles
// Has to run after AuthMiddleware
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := userctx.FromContext(r.Context())
			if !ok {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if !slices.Contains(roles, claims.Role) {
				render.ServiceError(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
