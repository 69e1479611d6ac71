package policy

import (
	"time"

	"github.com/silasmoran/bastion/internal/models"
)

// LockoutPolicy configures failed-attempt lockout behavior.
type LockoutPolicy struct {
	MaxAttempts     int
	LockoutDuration time.Duration
}

// DefaultLockoutPolicy returns the lockout settings used when none are configured.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		MaxAttempts:     5,
		LockoutDuration: 15 * time.Minute,
	}
}

// Denial reasons for ShouldAllowLoginAttempt.
const (
	ReasonLocked          = "locked"
	ReasonTooManyFailures = "too_many_failures"
	ReasonSuspended       = "suspended"
	ReasonDisabled        = "disabled"
)

// AttemptDecision is the outcome of the pre-password lockout check.
type AttemptDecision struct {
	Allowed    bool
	Reason     string
	RetryAfter time.Duration
}

// ShouldAllowLoginAttempt decides whether a login attempt may proceed to
// password verification. Pure: reads the user snapshot and the clock value
// passed in, touches nothing.
func ShouldAllowLoginAttempt(u *models.User, pol LockoutPolicy, now time.Time) AttemptDecision {
	switch u.Status {
	case models.StatusSuspended:
		return AttemptDecision{Allowed: false, Reason: ReasonSuspended}
	case models.StatusDisabled:
		return AttemptDecision{Allowed: false, Reason: ReasonDisabled}
	}

	if u.Locked(now) {
		return AttemptDecision{
			Allowed:    false,
			Reason:     ReasonLocked,
			RetryAfter: u.LockedUntil.Sub(now),
		}
	}

	// A counter at the maximum with no lock timestamp means the lock write
	// never landed; deny rather than hand out a free attempt. An expired
	// LockedUntil readmits the user even though the counter is still at the
	// maximum; the next failure re-locks immediately.
	if pol.MaxAttempts > 0 && u.LockedUntil == nil && u.FailedLoginCount >= pol.MaxAttempts {
		return AttemptDecision{
			Allowed:    false,
			Reason:     ReasonTooManyFailures,
			RetryAfter: pol.LockoutDuration,
		}
	}

	return AttemptDecision{Allowed: true}
}

// FailedLoginDelta computes the state change for one more failed attempt:
// the counter increments, and the account locks once it reaches the maximum.
func FailedLoginDelta(u *models.User, pol LockoutPolicy, now time.Time) models.UserSecurityDelta {
	next := u.FailedLoginCount + 1
	delta := models.UserSecurityDelta{FailedLoginCount: &next}

	if pol.MaxAttempts > 0 && next >= pol.MaxAttempts {
		lockedUntil := now.Add(pol.LockoutDuration)
		delta.LockedUntil = &lockedUntil
	}

	return delta
}

// SuccessfulLoginDelta resets the failure counter, clears any lock, and
// stamps the login time. Applies regardless of the prior count.
func SuccessfulLoginDelta(u *models.User, now time.Time) models.UserSecurityDelta {
	zero := 0
	loginAt := now
	return models.UserSecurityDelta{
		FailedLoginCount: &zero,
		ClearLockedUntil: true,
		LastLoginAt:      &loginAt,
	}
}
