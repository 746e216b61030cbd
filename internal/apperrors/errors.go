package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")

	// Required request fields are absent
	ErrMissingFields = errors.New("required fields are missing")
	ErrMissingToken  = errors.New("token not provided")

	// Refresh token is absent, revoked or expired according to the ledger,
	// or its signed payload could not be verified
	ErrInvalidToken         = errors.New("invalid token")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")

	// Signed token codec failures
	ErrTokenMalformed        = errors.New("token is malformed")
	ErrTokenInvalidSignature = errors.New("token signature is invalid")
	ErrTokenExpired          = errors.New("token is expired")
	ErrTokenWrongKind        = errors.New("token kind is not expected one")

	// Password reset ledger failures, checked in that order
	ErrResetTokenNotFound = errors.New("reset token not found")
	ErrResetTokenUsed     = errors.New("reset token already used")
	ErrResetTokenExpired  = errors.New("reset token expired")

	ErrMailDelivery = errors.New("mail delivery failed")
)
