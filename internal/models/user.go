package models

import (
	"time"
)

// Account status values
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusDisabled  = "disabled"
)

// User carries the security state the authentication core reads and mutates.
// Mutations happen only through UserSecurityDelta values applied by the
// repository with an optimistic version check; services never write fields
// on a fetched User directly.
type User struct {
	ID                 string
	Email              string
	Name               string
	PasswordHash       string
	Role               string // e.g., "user", "admin"
	Status             string // "active", "suspended", "disabled"
	FailedLoginCount   int
	LockedUntil        *time.Time // Temporary account lock expiration
	LastLoginAt        *time.Time
	MFAEnabled         bool
	MFASecretEncrypted []byte // AES-256-GCM encrypted TOTP secret, nil until setup
	MFASecretNonce     []byte // GCM nonce (12 bytes)
	PasswordCreatedAt  time.Time
	ForcePasswordReset bool
	Version            int64 // Optimistic concurrency token
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Locked reports whether a temporary lock is in effect at the given instant.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}
