package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authservice/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user
	// If user with the email exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, email string, hashedPassword string, role models.Role) (models.User, error)

	// Get user by it's id or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Replace password hash and bump 'updatedAt'
	// If user not found must return apperrors.ErrUserNotFound
	UpdatePassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error
}

// RefreshToken repository interface
// Tokens are never deleted, only revoked
type RefreshTokenRepo interface {
	Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// Return the token even it expired or revoked
	// If not found must return apperrors.ErrRefreshTokenNotFound
	Get(ctx context.Context, tokenString string) (models.RefreshToken, error)

	// Mark token revoked. Unknown or already revoked token is not an error
	Revoke(ctx context.Context, tokenString string, at time.Time) (revoked bool, err error)

	// Revoke every not revoked token of the user, return number of revoked tokens
	RevokeAllForUser(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
}

// PasswordResetToken repository interface
type PasswordResetRepo interface {
	Save(ctx context.Context, token models.PasswordResetToken) (models.PasswordResetToken, error)

	// Return the token even it expired or used
	// If not found must return apperrors.ErrResetTokenNotFound
	Get(ctx context.Context, tokenString string) (models.PasswordResetToken, error)

	// Atomically mark token used if it is not used and not expired at 'now'
	// Checks happen in order and the first failed one is returned:
	//   - apperrors.ErrResetTokenNotFound
	//   - apperrors.ErrResetTokenUsed (also when concurrent request consumed it first)
	//   - apperrors.ErrResetTokenExpired
	Consume(ctx context.Context, tokenString string, now time.Time) (models.PasswordResetToken, error)
}

type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo
	PasswordReset() PasswordResetRepo

	// Run fn in transaction: commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
