package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/authservice/internal/apperrors"
	"github.com/nkiryanov/authservice/internal/models"
)

type PasswordResetRepo struct {
	DB DBTX
}

const resetTokenColumns = `id, user_id, token, created_at, expires_at, used, used_at`

const saveResetToken = `-- name: SaveResetToken
INSERT INTO password_reset_tokens (id, user_id, token, created_at, expires_at, used, used_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + resetTokenColumns

func (r *PasswordResetRepo) Save(ctx context.Context, token models.PasswordResetToken) (models.PasswordResetToken, error) {
	rows, _ := r.DB.Query(ctx, saveResetToken,
		token.ID, token.UserID, token.Token, token.CreatedAt, token.ExpiresAt, token.Used, token.UsedAt,
	)
	saved, err := pgx.CollectOneRow(rows, rowToResetToken)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}
	return saved, nil
}

const getResetToken = `-- name: GetResetToken
SELECT ` + resetTokenColumns + `
FROM password_reset_tokens
WHERE token = $1
`

func (r *PasswordResetRepo) Get(ctx context.Context, tokenString string) (models.PasswordResetToken, error) {
	rows, _ := r.DB.Query(ctx, getResetToken, tokenString)
	token, err := pgx.CollectOneRow(rows, rowToResetToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrResetTokenNotFound)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

// The conditional UPDATE is the only writer: concurrent statements on the same row wait for the row lock
// and re-check 'NOT used' against the committed version, so at most one of them flips the flag.
// The outer SELECT sees the row as it was before the statement and is used to explain a refusal.
const consumeResetToken = `-- name: ConsumeResetToken
WITH consumed AS (
	UPDATE password_reset_tokens
	SET used = true, used_at = $2
	WHERE token = $1 AND NOT used AND expires_at > $2
	RETURNING used_at
)
SELECT ` + resetTokenColumns + `, EXISTS (SELECT 1 FROM consumed) AS consumed
FROM password_reset_tokens
WHERE token = $1
`

func (r *PasswordResetRepo) Consume(ctx context.Context, tokenString string, now time.Time) (models.PasswordResetToken, error) {
	var consumed bool

	rows, _ := r.DB.Query(ctx, consumeResetToken, tokenString, now)
	token, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.PasswordResetToken, error) {
		var t models.PasswordResetToken
		err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.CreatedAt, &t.ExpiresAt, &t.Used, &t.UsedAt, &consumed)
		return t, err
	})

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrResetTokenNotFound)
	case err != nil:
		return token, fmt.Errorf("db error: %w", err)
	case consumed:
		token.Used = true
		token.UsedAt = &now
		return token, nil
	case token.Used:
		return token, fmt.Errorf("repo error: %w", apperrors.ErrResetTokenUsed)
	case !now.Before(token.ExpiresAt):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrResetTokenExpired)
	default:
		// Not used and not expired in the snapshot but not consumed: other request was first
		return token, fmt.Errorf("repo error: %w", apperrors.ErrResetTokenUsed)
	}
}

func rowToResetToken(row pgx.CollectableRow) (models.PasswordResetToken, error) {
	var t models.PasswordResetToken
	err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.CreatedAt, &t.ExpiresAt, &t.Used, &t.UsedAt)
	return t, err
}
