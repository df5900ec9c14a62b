package errors

import (
	"errors"
	"fmt"
)

// Common error types for the auth service
var (
	// Account errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountBanned      = errors.New("account is banned")
	ErrAccountSuspended   = errors.New("account is suspended")

	// Access token errors
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidTokenFormat = errors.New("invalid token format")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenRevoked       = errors.New("token has been revoked")

	// Refresh token errors
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenRevoked = errors.New("refresh token has been revoked")
	ErrRefreshTokenReused  = errors.New("refresh token has already been used")
	ErrRefreshTokenExpired = errors.New("refresh token has expired")

	// OAuth state errors
	ErrMissingState     = errors.New("missing state parameter")
	ErrInvalidState     = errors.New("invalid or expired state")
	ErrProviderMismatch = errors.New("state was issued for a different provider")
	ErrStateAlreadyUsed = errors.New("state has already been used")
	ErrStateExpired     = errors.New("state has expired")

	// Identity provider errors
	ErrProviderNotConfigured = errors.New("oauth provider not configured")
	ErrCodeExchangeFailed    = errors.New("oauth token exchange failed")
	ErrIdentityFetchFailed   = errors.New("oauth userinfo fetch failed")
	ErrIncompleteIdentity    = errors.New("oauth provider did not return required user information")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
