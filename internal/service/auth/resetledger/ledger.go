// Package resetledger creates single-use password reset tokens and consumes them.
package resetledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authservice/internal/metrics"
	"github.com/nkiryanov/authservice/internal/models"
	"github.com/nkiryanov/authservice/internal/repository"
	"github.com/nkiryanov/authservice/internal/service/auth/refreshledger"
)

// Reset token lifetime
const Window = time.Hour

// Random bytes in a token, it is hex encoded so the value is twice as long
const tokenBytes = 32

// Change applied to the user when token is consumed
// It runs in the same transaction as the consumption, so error rolls back both
type Applier func(ctx context.Context, tx repository.Storage, userID uuid.UUID) error

type Config struct {
	// Clock. If not set than time.Now is used
	Now func() time.Time
}

type Ledger struct {
	now     func() time.Time
	storage repository.Storage
	refresh *refreshledger.Ledger
}

func New(cfg Config, storage repository.Storage, refresh *refreshledger.Ledger) *Ledger {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Ledger{
		now:     cfg.Now,
		storage: storage,
		refresh: refresh,
	}
}

// Create new token for the user valid for Window
func (l *Ledger) Create(ctx context.Context, userID uuid.UUID) (models.PasswordResetToken, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return models.PasswordResetToken{}, fmt.Errorf("error while generate reset token. Err: %w", err)
	}

	now := l.now()
	token, err := l.storage.PasswordReset().Save(ctx, models.PasswordResetToken{
		ID:        uuid.New(),
		UserID:    userID,
		Token:     hex.EncodeToString(b),
		CreatedAt: now,
		ExpiresAt: now.Add(Window),
	})
	if err != nil {
		return models.PasswordResetToken{}, fmt.Errorf("error while saving reset token. Err: %w", err)
	}

	return token, nil
}

// Consume the token, apply the change and revoke every refresh token of the user
// All three happen in one transaction: if any fails the token stays unused
// Returns apperrors.ErrResetTokenNotFound, ErrResetTokenUsed or ErrResetTokenExpired if token can't be consumed
func (l *Ledger) Consume(ctx context.Context, token string, apply Applier) error {
	if apply == nil {
		return errors.New("applier is required")
	}

	var revoked int64
	err := l.storage.InTx(ctx, func(tx repository.Storage) error {
		record, err := tx.PasswordReset().Consume(ctx, token, l.now())
		if err != nil {
			return err
		}

		if err := apply(ctx, tx, record.UserID); err != nil {
			return err
		}

		revoked, err = l.refresh.InStorage(tx).RevokeAllFor(ctx, record.UserID)
		return err
	})
	if err != nil {
		return err
	}

	metrics.RefreshTokensRevoked.Add(float64(revoked))
	return nil
}
