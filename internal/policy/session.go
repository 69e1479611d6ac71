package policy

import (
	"time"

	"github.com/silasmoran/bastion/internal/models"
)

// SessionPolicy configures session creation, duration, and refresh behavior.
type SessionPolicy struct {
	DefaultDuration      time.Duration
	ElevatedRiskDuration time.Duration
	HighRiskDuration     time.Duration
	RememberDuration     time.Duration

	// Risk score thresholds. At or above ElevatedRiskThreshold the session
	// shortens; at or above HighRiskThreshold it shortens further and the
	// caller is told to require additional verification; at or above
	// RiskCeiling no session is created at all.
	ElevatedRiskThreshold int
	HighRiskThreshold     int
	RiskCeiling           int

	// Minimum interval between last_accessed_at writes. Throttling is an
	// optimization, not a correctness requirement.
	AccessRefreshInterval time.Duration
}

// DefaultSessionPolicy returns the session settings used when none are configured.
func DefaultSessionPolicy() SessionPolicy {
	return SessionPolicy{
		DefaultDuration:       24 * time.Hour,
		ElevatedRiskDuration:  8 * time.Hour,
		HighRiskDuration:      1 * time.Hour,
		RememberDuration:      30 * 24 * time.Hour,
		ElevatedRiskThreshold: 30,
		HighRiskThreshold:     60,
		RiskCeiling:           80,
		AccessRefreshInterval: 5 * time.Minute,
	}
}

// SessionDecision is the outcome of ShouldCreateSession.
type SessionDecision struct {
	Create                         bool
	Duration                       time.Duration
	RequiresAdditionalVerification bool
}

// ShouldCreateSession decides whether and for how long to create a session
// given the risk assessment. Duration shrinks as risk rises; above the
// ceiling no session is created even with correct credentials.
func ShouldCreateSession(risk models.RiskAssessment, remember bool, pol SessionPolicy) SessionDecision {
	if pol.RiskCeiling > 0 && risk.Score >= pol.RiskCeiling {
		return SessionDecision{Create: false}
	}

	switch {
	case risk.Score >= pol.HighRiskThreshold:
		return SessionDecision{
			Create:                         true,
			Duration:                       pol.HighRiskDuration,
			RequiresAdditionalVerification: true,
		}
	case risk.Score >= pol.ElevatedRiskThreshold:
		return SessionDecision{Create: true, Duration: pol.ElevatedRiskDuration}
	}

	d := pol.DefaultDuration
	if remember {
		d = pol.RememberDuration
	}
	return SessionDecision{Create: true, Duration: d}
}

// Session validity reasons.
type ValidityReason string

const (
	ValidityOK      ValidityReason = "ok"
	ValidityExpired ValidityReason = "expired"
	ValidityRevoked ValidityReason = "revoked"
)

// SessionValidity reports whether a session is usable at the given instant.
// Revocation takes precedence over expiry when both apply.
func SessionValidity(s *models.Session, now time.Time) (bool, ValidityReason) {
	if s.RevokedAt != nil {
		return false, ValidityRevoked
	}
	if !now.Before(s.ExpiresAt) {
		return false, ValidityExpired
	}
	return true, ValidityOK
}

// ShouldRefreshAccessTime reports whether last_accessed_at is stale enough
// to be worth a write.
func ShouldRefreshAccessTime(s *models.Session, now time.Time, pol SessionPolicy) bool {
	if s.LastAccessedAt == nil {
		return true
	}
	return now.Sub(*s.LastAccessedAt) >= pol.AccessRefreshInterval
}

// InvalidationDelta prepares the revocation of a session. Idempotent at this
// layer: a session that is already revoked keeps its original revocation
// time; whether double-invalidation surfaces as "not found" is the
// orchestrator's call.
func InvalidationDelta(s *models.Session, now time.Time) models.SessionDelta {
	if s.RevokedAt != nil {
		return models.SessionDelta{RevokedAt: s.RevokedAt}
	}
	revokedAt := now
	return models.SessionDelta{RevokedAt: &revokedAt}
}
