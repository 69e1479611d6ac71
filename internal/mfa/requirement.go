// Package mfa separates the two pure halves of multi-factor authentication:
// deciding whether a factor is required, and verifying a submitted code
// through one of the Verifier strategies (TOTP, backup code).
package mfa

import (
	"github.com/silasmoran/bastion/internal/models"
)

// RequirementDecision is the outcome of the MFA requirement check.
type RequirementDecision struct {
	Required      bool
	CodeSubmitted bool
}

// Requirement decides whether MFA stands between this attempt and a session.
// MFA is required iff the user has it enabled and the password checked out;
// whether a code was submitted only determines if verification can complete
// this round or the caller must come back with one.
func Requirement(u *models.User, passwordValid bool, submittedCode string) RequirementDecision {
	return RequirementDecision{
		Required:      passwordValid && u.MFAEnabled,
		CodeSubmitted: submittedCode != "",
	}
}
