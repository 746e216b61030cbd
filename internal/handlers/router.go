package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/authservice/internal/handlers/middleware"
	"github.com/nkiryanov/authservice/internal/logger"
	"github.com/nkiryanov/authservice/internal/metrics"
	"github.com/nkiryanov/authservice/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(authService authService, logger logger.Logger) http.Handler {
	withAuth := middleware.AuthMiddleware(authService)
	withRoles := func(roles ...models.Role) func(http.Handler) http.Handler {
		return middleware.RequireRole(roles...)
	}

	mux := http.NewServeMux()

	mux.Handle("POST /api/auth/register", handleRegister(authService, logger))
	mux.Handle("POST /api/auth/login", handleLogin(authService, logger))
	mux.Handle("POST /api/auth/refresh", handleRefresh(authService, logger))
	mux.Handle("POST /api/auth/logout", handleLogout(authService, logger))
	mux.Handle("POST /api/auth/request-reset", handleRequestReset(authService, logger))
	mux.Handle("POST /api/auth/reset-password", handleResetPassword(authService, logger))

	mux.Handle("GET /api/users/me", chain(handleUserMe(authService, logger), withAuth))
	mux.Handle("GET /api/protected", chain(handleProtected(), withAuth, withRoles(models.RoleUser, models.RoleAdmin)))

	handler := chain(mux,
		metrics.HTTPMiddleware,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type authService interface {
	// Register user with email and password
	// Has to return apperrors.ErrUserAlreadyExists if user already exists
	Register(ctx context.Context, email string, password string) (models.Profile, error)

	// Has to return apperrors.ErrInvalidCredentials if email unknown or password wrong
	Login(ctx context.Context, email string, password string) (models.TokenPair, error)

	// Issue access token for refresh token
	// Has to return apperrors.ErrMissingToken or apperrors.ErrInvalidToken
	Refresh(ctx context.Context, refresh string) (models.IssuedToken, error)

	// Revoke refresh token, has to return apperrors.ErrMissingToken if token empty
	Logout(ctx context.Context, refresh string) error

	// Send reset link. Must not fail on unknown email
	// Has to return apperrors.ErrMailDelivery if link can't be sent
	RequestReset(ctx context.Context, email string) error

	// Set new password by reset token
	// Has to return apperrors.ErrMissingFields, apperrors.ErrResetTokenNotFound,
	// apperrors.ErrResetTokenUsed or apperrors.ErrResetTokenExpired
	ConfirmReset(ctx context.Context, token string, newPassword string) error

	Profile(ctx context.Context, userID uuid.UUID) (models.Profile, error)

	// Verify access token
	Authenticate(ctx context.Context, access string) (models.Claims, error)
}
