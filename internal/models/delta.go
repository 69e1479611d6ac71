package models

import "time"

// UserSecurityDelta describes a pending change to a user's security state.
// Deltas are computed by pure policy functions and applied in one place,
// UserRepository.ApplyDelta, under an optimistic version check. Nil pointer
// fields mean "leave unchanged"; the Clear* booleans distinguish "set to
// NULL" from "leave unchanged" for nullable columns.
type UserSecurityDelta struct {
	FailedLoginCount *int
	LockedUntil      *time.Time
	ClearLockedUntil bool
	LastLoginAt      *time.Time

	MFAEnabled         *bool
	MFASecretEncrypted []byte
	MFASecretNonce     []byte
	ClearMFASecret     bool

	PasswordHash       *string
	PasswordCreatedAt  *time.Time
	ForcePasswordReset *bool
}

// Empty reports whether applying the delta would change nothing.
func (d UserSecurityDelta) Empty() bool {
	return d.FailedLoginCount == nil &&
		d.LockedUntil == nil &&
		!d.ClearLockedUntil &&
		d.LastLoginAt == nil &&
		d.MFAEnabled == nil &&
		d.MFASecretEncrypted == nil &&
		d.MFASecretNonce == nil &&
		!d.ClearMFASecret &&
		d.PasswordHash == nil &&
		d.PasswordCreatedAt == nil &&
		d.ForcePasswordReset == nil
}

// BackupCode is a stored, hashed single-use recovery code.
type BackupCode struct {
	UserID    string
	CodeHash  string // SHA-256 hex digest of the plain code
	UsedAt    *time.Time
	CreatedAt time.Time
}
