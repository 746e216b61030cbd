// Package codec signs and verifies bearer tokens carrying models.Claims.
//
// Codec keeps no state except the secret and the clock, so it is safe for concurrent use.
// Changing the secret invalidates every token issued before.
package codec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/authservice/internal/apperrors"
	"github.com/nkiryanov/authservice/internal/models"
)

const defaultSigningMethod = "HS256"

type tokenClaims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID        `json:"id"`
	Role   models.Role      `json:"role"`
	Kind   models.TokenKind `json:"typ"`
}

// Codec config with sensible defaults
type Config struct {
	// Secret key to sign tokens
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than HS256 is used
	Alg string

	// Clock. If not set than time.Now is used
	Now func() time.Time
}

type Codec struct {
	key []byte
	alg jwt.SigningMethod
	now func() time.Time
}

func New(cfg Config) (*Codec, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg, ok := jwt.GetSigningMethod(cfg.Alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("signing method %q is not supported, HMAC one expected", cfg.Alg)
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Codec{
		key: []byte(cfg.SecretKey),
		alg: alg,
		now: cfg.Now,
	}, nil
}

// Issue token of the kind valid for ttl from now
// Expiration has second precision, so the returned ExpiresAt is truncated the same way
func (c *Codec) Issue(kind models.TokenKind, claims models.Claims, ttl time.Duration) (models.IssuedToken, error) {
	now := c.now().Truncate(time.Second)
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(c.alg, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(), // two tokens issued for the same user in the same second must differ
			Subject:   claims.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: claims.UserID,
		Role:   claims.Role,
		Kind:   kind,
	})

	value, err := token.SignedString(c.key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing token. Err: %w", err)
	}

	return models.IssuedToken{Value: value, ExpiresAt: expiresAt}, nil
}

// Verify token signature, expiration and that it is of the expected kind
// Returns one of apperrors.ErrTokenExpired, ErrTokenInvalidSignature, ErrTokenMalformed, ErrTokenWrongKind
func (c *Codec) Verify(kind models.TokenKind, value string) (models.Claims, error) {
	claims := &tokenClaims{}

	_, err := jwt.ParseWithClaims(
		value,
		claims,
		func(t *jwt.Token) (any, error) {
			return c.key, nil
		},
		jwt.WithValidMethods([]string{c.alg.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return models.Claims{}, fmt.Errorf("%w: %w", apperrors.ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return models.Claims{}, fmt.Errorf("%w: %w", apperrors.ErrTokenInvalidSignature, err)
	default:
		return models.Claims{}, fmt.Errorf("%w: %w", apperrors.ErrTokenMalformed, err)
	}

	if claims.UserID == uuid.Nil || !claims.Role.Valid() {
		return models.Claims{}, fmt.Errorf("%w: claims are incomplete", apperrors.ErrTokenMalformed)
	}
	if claims.Kind != kind {
		return models.Claims{}, fmt.Errorf("%w: got %q, want %q", apperrors.ErrTokenWrongKind, claims.Kind, kind)
	}

	return models.Claims{UserID: claims.UserID, Role: claims.Role}, nil
}
