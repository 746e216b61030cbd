package models

import (
	"time"

	"github.com/google/uuid"
)

// Kind of signed token, it is signed into the token itself
// Access tokens authenticate requests, refresh tokens are only exchanged for access tokens
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// Payload signed into access and refresh tokens
type Claims struct {
	UserID uuid.UUID
	Role   Role
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issued on login
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
	Revoked   bool
	RevokedAt *time.Time // nil if token not revoked
}

// Token is valid only if it is not revoked and not expired at the moment
func (t RefreshToken) IsValid(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

type PasswordResetToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time // nil if token not used
}

func (t PasswordResetToken) IsValid(now time.Time) bool {
	return !t.Used && now.Before(t.ExpiresAt)
}
