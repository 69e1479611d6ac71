package models

// LoginContext carries the transient request context of a login attempt.
type LoginContext struct {
	IPAddress string
	UserAgent string
	MFACode   string // empty unless the caller submitted a code this round
	Remember  bool
}

// Risk flags produced by the analyzer.
const (
	RiskFlagNewIP            = "new_ip"
	RiskFlagNewDevice        = "new_device"
	RiskFlagPossibleStuffing = "possible_stuffing"
)

// RiskAssessment is derived per login attempt and never persisted.
type RiskAssessment struct {
	Score int
	Flags []string
}

// Has reports whether the assessment carries the given flag.
func (r RiskAssessment) Has(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// AuthStatus tags the terminal state of an authentication attempt.
type AuthStatus string

const (
	AuthSuccess     AuthStatus = "success"
	AuthMFARequired AuthStatus = "mfa_required"
	AuthFailed      AuthStatus = "failed"
)

// AuthResult is the outcome of AuthService.Authenticate. Exactly one of the
// three statuses applies: on success Session and SignedToken are set; on
// mfa_required the caller resubmits credentials with a code; on failure
// Failure carries the tagged reason.
type AuthResult struct {
	Status             AuthStatus
	Session            *Session
	SignedToken        string
	User               *User
	Risk               RiskAssessment
	ForcePasswordReset bool
	UsedBackupCode     bool

	// Set when the session policy shortened the session for high risk and
	// wants step-up verification before sensitive operations.
	RequiresAdditionalVerification bool

	Failure *AuthError
}
