package models

import "time"

// Session is a server-side authenticated session backed by an opaque token.
// Rows are immutable after creation except last_accessed_at and revoked_at;
// invalidation is logical (revoked_at set), hard deletion happens only in the
// bulk retention sweep.
type Session struct {
	ID             string
	UserID         string
	Token          string // opaque, unique, URL-safe
	SignedToken    *string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	LastAccessedAt *time.Time
	RevokedAt      *time.Time
	IPAddress      string
	UserAgent      string
}

// Active reports whether the session is usable at the given instant:
// not revoked and not past its expiry.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// SessionDelta is the only way session mutable fields change after creation.
type SessionDelta struct {
	LastAccessedAt *time.Time
	RevokedAt      *time.Time
}
