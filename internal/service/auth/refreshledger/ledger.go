// Package refreshledger issues refresh tokens and keeps track of their revocation.
//
// A refresh token is a signed token persisted in the store. The store record is the
// source of truth: a token is valid only while its record exists, is not revoked and
// is not expired.
package refreshledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authservice/internal/apperrors"
	"github.com/nkiryanov/authservice/internal/metrics"
	"github.com/nkiryanov/authservice/internal/models"
	"github.com/nkiryanov/authservice/internal/repository"
)

const defaultTTL = 7 * 24 * time.Hour

type Signer interface {
	Issue(kind models.TokenKind, claims models.Claims, ttl time.Duration) (models.IssuedToken, error)
}

type Config struct {
	// Refresh token lifetime
	// If not set than 7 days is used
	TTL time.Duration

	// Clock. If not set than time.Now is used
	Now func() time.Time
}

type Ledger struct {
	ttl     time.Duration
	now     func() time.Time
	signer  Signer
	storage repository.Storage

	// Ledger bound to a transaction leaves metrics to the transaction owner
	recordMetrics bool
}

func New(cfg Config, signer Signer, storage repository.Storage) (*Ledger, error) {
	if signer == nil || storage == nil {
		return nil, errors.New("signer and storage are required")
	}

	if cfg.TTL == 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("refresh token ttl must be positive, got %s", cfg.TTL)
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Ledger{
		ttl:           cfg.TTL,
		now:           cfg.Now,
		signer:        signer,
		storage:       storage,
		recordMetrics: true,
	}, nil
}

// Same ledger working with storage bound to transaction
// It records no metrics: the caller does it once the transaction is committed
func (l *Ledger) InStorage(tx repository.Storage) *Ledger {
	cp := *l
	cp.storage = tx
	cp.recordMetrics = false
	return &cp
}

// Sign new refresh token for the user and persist it
func (l *Ledger) IssueFor(ctx context.Context, user models.User) (models.IssuedToken, error) {
	issued, err := l.signer.Issue(models.TokenRefresh, models.Claims{UserID: user.ID, Role: user.Role}, l.ttl)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing refresh token. Err: %w", err)
	}

	_, err = l.storage.Refresh().Save(ctx, models.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     issued.Value,
		CreatedAt: l.now(),
		ExpiresAt: issued.ExpiresAt,
	})
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	if l.recordMetrics {
		metrics.RefreshTokensIssued.Inc()
	}
	return issued, nil
}

// Check the token against the store only, signature is not verified here
// Unknown, revoked or expired token is not valid. Store failure is returned as error
func (l *Ledger) IsValid(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	record, err := l.storage.Refresh().Get(ctx, token)
	switch {
	case errors.Is(err, apperrors.ErrRefreshTokenNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("error while getting refresh token. Err: %w", err)
	}

	return record.IsValid(l.now()), nil
}

// Revoke the token. Unknown or already revoked token is ignored
func (l *Ledger) Revoke(ctx context.Context, token string) error {
	revoked, err := l.storage.Refresh().Revoke(ctx, token, l.now())
	if err != nil {
		return fmt.Errorf("error while revoking refresh token. Err: %w", err)
	}

	if revoked && l.recordMetrics {
		metrics.RefreshTokensRevoked.Inc()
	}
	return nil
}

// Revoke every active token of the user, return how many were revoked
func (l *Ledger) RevokeAllFor(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := l.storage.Refresh().RevokeAllForUser(ctx, userID, l.now())
	if err != nil {
		return 0, fmt.Errorf("error while revoking user refresh tokens. Err: %w", err)
	}

	if l.recordMetrics {
		metrics.RefreshTokensRevoked.Add(float64(n))
	}
	return n, nil
}
