// Package auth manages user sessions: registration, login, access token refresh,
// logout and password reset.
//
// Access tokens are not stored and stay valid until they expire, even after logout or
// password reset. Refresh tokens are revoked in the store. A refreshed access token carries
// the role signed into the refresh token, so a role change is seen only after a new login.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authservice/internal/apperrors"
	"github.com/nkiryanov/authservice/internal/logger"
	"github.com/nkiryanov/authservice/internal/metrics"
	"github.com/nkiryanov/authservice/internal/models"
	"github.com/nkiryanov/authservice/internal/repository"
	"github.com/nkiryanov/authservice/internal/service/auth/refreshledger"
	"github.com/nkiryanov/authservice/internal/service/auth/resetledger"
	"github.com/nkiryanov/authservice/internal/service/mail"
)

const (
	defaultAccessTTL = 15 * time.Minute
	defaultResetPath = "/api/auth/reset-password"
)

// Signs and verifies access tokens
type Codec interface {
	Issue(kind models.TokenKind, claims models.Claims, ttl time.Duration) (models.IssuedToken, error)
	Verify(kind models.TokenKind, token string) (models.Claims, error)
}

//go:generate mockgen -destination=../../mocks/mailer.go -package=mocks github.com/nkiryanov/authservice/internal/service/auth Mailer

// Delivers reset link to the user
type Mailer interface {
	SendResetLink(ctx context.Context, address string, link string) error
}

type Config struct {
	// Access token lifetime, 15 minutes if not set
	AccessTTL time.Duration

	// Public address of the service, the reset link points to it
	// Required to be set
	BaseURL string

	// Hasher to use during user registration or login process
	// BcryptHasher if not set
	Hasher PasswordHasher

	// Path of the reset page, "/api/auth/reset-password" if not set
	ResetPath string
}

type Service struct {
	accessTTL time.Duration
	baseURL   string
	resetPath string
	hasher    PasswordHasher

	// Hash compared on login of unknown user, so such login takes as long as a wrong password
	dummyHash string

	codec   Codec
	refresh *refreshledger.Ledger
	reset   *resetledger.Ledger
	storage repository.Storage
	mailer  Mailer
	logger  logger.Logger
}

func NewService(
	cfg Config,
	codec Codec,
	refresh *refreshledger.Ledger,
	reset *resetledger.Ledger,
	storage repository.Storage,
	mailer Mailer,
	l logger.Logger,
) (*Service, error) {
	if codec == nil || refresh == nil || reset == nil || storage == nil || mailer == nil || l == nil {
		return nil, errors.New("auth service dependencies must not be nil")
	}

	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.ResetPath == "" {
		cfg.ResetPath = defaultResetPath
	}
	if cfg.Hasher == nil {
		cfg.Hasher = BcryptHasher{}
	}
	if _, err := mail.ResetLink(cfg.BaseURL, cfg.ResetPath, ""); err != nil {
		return nil, fmt.Errorf("invalid base url. Err: %w", err)
	}

	dummyHash, err := newDummyHash(cfg.Hasher)
	if err != nil {
		return nil, err
	}

	return &Service{
		accessTTL: cfg.AccessTTL,
		baseURL:   cfg.BaseURL,
		resetPath: cfg.ResetPath,
		hasher:    cfg.Hasher,
		dummyHash: dummyHash,
		codec:     codec,
		refresh:   refresh,
		reset:     reset,
		storage:   storage,
		mailer:    mailer,
		logger:    l,
	}, nil
}

func newDummyHash(h PasswordHasher) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("error while generate dummy password. Err: %w", err)
	}

	hash, err := h.Hash(hex.EncodeToString(b))
	if err != nil {
		return "", fmt.Errorf("error while hashing dummy password. Err: %w", err)
	}
	return hash, nil
}

func (s *Service) Register(ctx context.Context, email string, password string) (models.Profile, error) {
	if email == "" || password == "" {
		return models.Profile{}, apperrors.ErrMissingFields
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.Profile{}, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	user, err := s.storage.User().CreateUser(ctx, email, hash, models.RoleUser)
	switch {
	case errors.Is(err, apperrors.ErrUserAlreadyExists):
		return models.Profile{}, err
	case err != nil:
		s.logger.Error("Can't create user", "error", err)
		return models.Profile{}, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user.Profile(), nil
}

// Authenticate user by credentials and issue token pair
// Unknown email and wrong password are indistinguishable: both return apperrors.ErrInvalidCredentials
func (s *Service) Login(ctx context.Context, email string, password string) (models.TokenPair, error) {
	user, err := s.storage.User().GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		_ = s.hasher.Compare(s.dummyHash, password)
		metrics.LoginsTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return models.TokenPair{}, apperrors.ErrInvalidCredentials
	case err != nil:
		s.logger.Error("Can't get user on login", "error", err)
		return models.TokenPair{}, fmt.Errorf("can't get user. Err: %w", err)
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		metrics.LoginsTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return models.TokenPair{}, apperrors.ErrInvalidCredentials
	}

	access, err := s.issueAccess(models.Claims{UserID: user.ID, Role: user.Role})
	if err != nil {
		return models.TokenPair{}, err
	}

	refresh, err := s.refresh.IssueFor(ctx, user)
	if err != nil {
		s.logger.Error("Can't issue refresh token", "user_id", user.ID, "error", err)
		return models.TokenPair{}, fmt.Errorf("token could not generated, sorry. Err: %w", err)
	}

	metrics.LoginsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// Issue new access token for valid refresh token
// Claims are taken from the refresh token, the refresh token itself is not rotated
func (s *Service) Refresh(ctx context.Context, refresh string) (models.IssuedToken, error) {
	if refresh == "" {
		return models.IssuedToken{}, apperrors.ErrMissingToken
	}

	valid, err := s.refresh.IsValid(ctx, refresh)
	switch {
	case err != nil:
		s.logger.Error("Can't check refresh token", "error", err)
		return models.IssuedToken{}, err
	case !valid:
		return models.IssuedToken{}, apperrors.ErrInvalidToken
	}

	claims, err := s.codec.Verify(models.TokenRefresh, refresh)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidToken, err)
	}

	return s.issueAccess(claims)
}

// Revoke refresh token. Unknown or revoked token is not an error
func (s *Service) Logout(ctx context.Context, refresh string) error {
	if refresh == "" {
		return apperrors.ErrMissingToken
	}

	if err := s.refresh.Revoke(ctx, refresh); err != nil {
		s.logger.Error("Can't revoke refresh token", "error", err)
		return err
	}
	return nil
}

// Create reset token and mail the link to the user
// Unknown email is not an error, so callers can't tell whether the email is registered
func (s *Service) RequestReset(ctx context.Context, email string) error {
	if email == "" {
		return apperrors.ErrMissingFields
	}

	user, err := s.storage.User().GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return nil
	case err != nil:
		s.logger.Error("Can't get user on reset request", "error", err)
		return fmt.Errorf("can't get user. Err: %w", err)
	}

	token, err := s.reset.Create(ctx, user.ID)
	if err != nil {
		s.logger.Error("Can't create reset token", "user_id", user.ID, "error", err)
		return err
	}
	metrics.PasswordResetRequests.Inc()

	link, err := mail.ResetLink(s.baseURL, s.resetPath, token.Token)
	if err != nil {
		return err
	}

	// The token stays valid: the user may ask again or use it if the mail arrives later
	if err := s.mailer.SendResetLink(ctx, user.Email, link); err != nil {
		metrics.PasswordResetMailFailures.Inc()
		s.logger.Error("Can't send reset link", "user_id", user.ID, "error", err)
		return fmt.Errorf("%w: %w", apperrors.ErrMailDelivery, err)
	}

	return nil
}

// Set new password using reset token and revoke every refresh token of the user
// Returns apperrors.ErrResetTokenNotFound, ErrResetTokenUsed or ErrResetTokenExpired if token can't be used
func (s *Service) ConfirmReset(ctx context.Context, token string, newPassword string) error {
	if token == "" || newPassword == "" {
		return apperrors.ErrMissingFields
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("can't use this as password, Err: %w", err)
	}

	err = s.reset.Consume(ctx, token, func(ctx context.Context, tx repository.Storage, userID uuid.UUID) error {
		return tx.User().UpdatePassword(ctx, userID, hash)
	})
	switch {
	case err == nil:
		metrics.PasswordResetsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
		return nil
	case errors.Is(err, apperrors.ErrResetTokenNotFound),
		errors.Is(err, apperrors.ErrResetTokenUsed),
		errors.Is(err, apperrors.ErrResetTokenExpired):
		metrics.PasswordResetsTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return err
	default:
		metrics.PasswordResetsTotal.WithLabelValues(metrics.ResultFailure).Inc()
		s.logger.Error("Can't reset password", "error", err)
		return err
	}
}

func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (models.Profile, error) {
	user, err := s.storage.User().GetUserByID(ctx, userID)
	if err != nil {
		return models.Profile{}, err
	}
	return user.Profile(), nil
}

// Verify access token and return its claims
// Refresh tokens are rejected even if they are not revoked yet
// Any verification failure is returned as apperrors.ErrInvalidToken wrapping the codec error
func (s *Service) Authenticate(_ context.Context, access string) (models.Claims, error) {
	if access == "" {
		return models.Claims{}, apperrors.ErrMissingToken
	}

	claims, err := s.codec.Verify(models.TokenAccess, access)
	if err != nil {
		return models.Claims{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidToken, err)
	}
	return claims, nil
}

func (s *Service) issueAccess(claims models.Claims) (models.IssuedToken, error) {
	access, err := s.codec.Issue(models.TokenAccess, claims, s.accessTTL)
	if err != nil {
		s.logger.Error("Can't issue access token", "user_id", claims.UserID, "error", err)
		return models.IssuedToken{}, fmt.Errorf("token could not generated, sorry. Err: %w", err)
	}

	metrics.AccessTokensIssued.Inc()
	return access, nil
}
