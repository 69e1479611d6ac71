package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound        = errors.New("resource not found")
	ErrConflict        = errors.New("resource already exists")
	ErrVersionConflict = errors.New("concurrent update conflict")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrBadRequest      = errors.New("bad request")
	ErrInternalServer  = errors.New("internal server error")

	// Account state errors
	ErrAccountDisabled  = errors.New("account is disabled")
	ErrAccountSuspended = errors.New("account is suspended")
	ErrAccountLocked    = errors.New("account is temporarily locked")

	// MFA errors
	ErrMFAInvalidCode  = errors.New("invalid MFA code")
	ErrMFANotEnrolled  = errors.New("MFA is not enrolled")
	ErrMFAAlreadySetUp = errors.New("MFA is already enabled")

	// Session errors
	ErrSessionExpired  = errors.New("session has expired")
	ErrSessionRevoked  = errors.New("session has been revoked")
	ErrSessionNotFound = errors.New("session not found")

	// Startup errors
	ErrConfiguration = errors.New("invalid configuration")
)

// ErrorKind classifies caller-facing authentication failures.
type ErrorKind string

const (
	KindValidation            ErrorKind = "validation_error"
	KindAuthenticationFailed  ErrorKind = "authentication_failed"
	KindMFARequired           ErrorKind = "mfa_required"
	KindMFAVerificationFailed ErrorKind = "mfa_verification_failed"
	KindSessionInvalid        ErrorKind = "session_invalid"
	KindSessionNotFound       ErrorKind = "session_not_found"
	KindConfiguration         ErrorKind = "configuration_error"
)

// AuthError is a tagged, caller-facing failure. Business-decision failures
// (wrong credentials, locked account, expired session) are returned as values
// of this type rather than bare sentinel errors so callers can branch on Kind
// without string matching. Unknown-user and wrong-password deliberately share
// KindAuthenticationFailed to prevent account enumeration.
type AuthError struct {
	Kind       ErrorKind
	Message    string
	RetryAfter *time.Duration
}

func (e *AuthError) Error() string {
	if e.RetryAfter != nil {
		return fmt.Sprintf("%s: %s (retry after %s)", e.Kind, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewAuthError builds an AuthError without a retry hint.
func NewAuthError(kind ErrorKind, message string) *AuthError {
	return &AuthError{Kind: kind, Message: message}
}

// NewLockedError builds the merged authentication failure carrying the time
// remaining on the lock. The kind stays authentication_failed so the response
// never discloses whether the account exists or is merely locked.
func NewLockedError(retryAfter time.Duration) *AuthError {
	return &AuthError{
		Kind:       KindAuthenticationFailed,
		Message:    "invalid credentials",
		RetryAfter: &retryAfter,
	}
}
