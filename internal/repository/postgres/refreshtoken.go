package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/authservice/internal/apperrors"
	"github.com/nkiryanov/authservice/internal/models"
)

type RefreshTokenRepo struct {
	DB DBTX
}

const refreshTokenColumns = `id, user_id, token, created_at, expires_at, revoked, revoked_at`

const saveRefreshToken = `-- name: SaveRefreshToken
INSERT INTO refresh_tokens (id, user_id, token, created_at, expires_at, revoked, revoked_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + refreshTokenColumns

func (r *RefreshTokenRepo) Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, saveRefreshToken,
		token.ID, token.UserID, token.Token, token.CreatedAt, token.ExpiresAt, token.Revoked, token.RevokedAt,
	)
	saved, err := pgx.CollectOneRow(rows, rowToRefreshToken)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}
	return saved, nil
}

const getRefreshToken = `-- name: GetRefreshToken by string itself
SELECT ` + refreshTokenColumns + `
FROM refresh_tokens
WHERE token = $1
`

// Get token
// It should return result even it expired or revoked already
func (r *RefreshTokenRepo) Get(ctx context.Context, tokenString string) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, getRefreshToken, tokenString)
	token, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const revokeRefreshToken = `-- name: RevokeRefreshToken if it not revoked
UPDATE refresh_tokens
SET revoked = true, revoked_at = $2
WHERE token = $1 AND NOT revoked
`

// Revoke token
// Must be idempotent: unknown or already revoked token is not an error, 'revokedAt' is not rewritten
func (r *RefreshTokenRepo) Revoke(ctx context.Context, tokenString string, at time.Time) (bool, error) {
	tag, err := r.DB.Exec(ctx, revokeRefreshToken, tokenString, at)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

const revokeUserRefreshTokens = `-- name: RevokeUserRefreshTokens
UPDATE refresh_tokens
SET revoked = true, revoked_at = $2
WHERE user_id = $1 AND NOT revoked
`

func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, revokeUserRefreshTokens, userID, at)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

func rowToRefreshToken(row pgx.CollectableRow) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.CreatedAt, &t.ExpiresAt, &t.Revoked, &t.RevokedAt)
	return t, err
}
