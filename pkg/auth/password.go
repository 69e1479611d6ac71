package auth

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 14
	MinPasswordLen = 8
	MaxPasswordLen = 128
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Common weak passwords rejected by the default deny-list
var commonPasswords = []string{
	"password", "12345678", "qwerty", "abc123", "password123",
	"password123!", "123456", "admin", "letmein", "welcome",
	"monkey", "dragon", "master", "123123", "passw0rd",
	"shadow", "sunshine", "princess", "starwars", "football",
	"trustno1",
}

// FieldError describes a single invalid credential field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// PasswordPolicy configures password-strength enforcement.
type PasswordPolicy struct {
	MinLength      int
	MaxLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
	DenyList       []string
}

// DefaultPasswordPolicy returns the policy applied when none is configured.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:      MinPasswordLen,
		MaxLength:      MaxPasswordLen,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: true,
		DenyList:       commonPasswords,
	}
}

// PasswordContext carries account attributes a password must not contain.
type PasswordContext struct {
	Email string
	Name  string
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidateLoginCredentials performs presence and shape checks on raw login
// input. No I/O; an empty slice means the credentials are well-formed.
func ValidateLoginCredentials(email, password string) []FieldError {
	var errs []FieldError

	email = strings.TrimSpace(email)
	if email == "" {
		errs = append(errs, FieldError{Field: "email", Message: "email is required"})
	} else if !emailPattern.MatchString(email) {
		errs = append(errs, FieldError{Field: "email", Message: "must be a valid email address"})
	}

	if password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "password is required"})
	}

	return errs
}

// ValidatePasswordPolicy checks a candidate password against the policy and
// account context, returning every violated rule rather than stopping at the
// first. Pure and deterministic.
func ValidatePasswordPolicy(password string, pol PasswordPolicy, ctx PasswordContext) []string {
	violations := make([]string, 0)

	if len(password) < pol.MinLength {
		violations = append(violations, fmt.Sprintf("must be at least %d characters", pol.MinLength))
	}
	if pol.MaxLength > 0 && len(password) > pol.MaxLength {
		violations = append(violations, fmt.Sprintf("must be at most %d characters", pol.MaxLength))
	}

	hasUpper := false
	hasLower := false
	hasDigit := false
	hasSpecial := false

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if pol.RequireUpper && !hasUpper {
		violations = append(violations, "must contain at least one uppercase letter")
	}
	if pol.RequireLower && !hasLower {
		violations = append(violations, "must contain at least one lowercase letter")
	}
	if pol.RequireDigit && !hasDigit {
		violations = append(violations, "must contain at least one digit")
	}
	if pol.RequireSpecial && !hasSpecial {
		violations = append(violations, "must contain at least one special character")
	}

	lower := strings.ToLower(password)

	if local := emailLocalPart(ctx.Email); local != "" && strings.Contains(lower, strings.ToLower(local)) {
		violations = append(violations, "must not contain your email address")
	}
	if name := strings.TrimSpace(ctx.Name); len(name) >= 3 && strings.Contains(lower, strings.ToLower(name)) {
		violations = append(violations, "must not contain your name")
	}

	for _, denied := range pol.DenyList {
		if lower == strings.ToLower(denied) {
			violations = append(violations, "is too common, please choose a more unique password")
			break
		}
	}

	return violations
}

func emailLocalPart(email string) string {
	at := strings.Index(email, "@")
	if at < 3 {
		// Short local parts would flag too many innocent passwords.
		return ""
	}
	return email[:at]
}
