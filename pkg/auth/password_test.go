package auth

import (
	"strings"
	"testing"
)

func TestValidatePasswordPolicy(t *testing.T) {
	pol := DefaultPasswordPolicy()
	ctx := PasswordContext{Email: "jane.doe@example.com", Name: "Jane Doe"}

	tests := []struct {
		name       string
		password   string
		violations int
		contains   string
	}{
		{
			name:       "valid strong password",
			password:   "SecureP@ss123",
			violations: 0,
		},
		{
			name:       "too short",
			password:   "Pa@1",
			violations: 1,
			contains:   "at least 8 characters",
		},
		{
			name:       "missing uppercase",
			password:   "securepass@123",
			violations: 1,
			contains:   "uppercase",
		},
		{
			name:       "missing lowercase",
			password:   "SECUREPASS@123",
			violations: 1,
			contains:   "lowercase",
		},
		{
			name:       "missing digit",
			password:   "SecurePass@xyz",
			violations: 1,
			contains:   "digit",
		},
		{
			name:       "missing special character",
			password:   "SecurePass123",
			violations: 1,
			contains:   "special",
		},
		{
			name:       "contains email local part",
			password:   "Jane.doe@Xy123!",
			violations: 1,
			contains:   "email",
		},
		{
			name:       "contains name",
			password:   "XyJane Doe123!@",
			violations: 1,
			contains:   "name",
		},
		{
			name:     "common password rejected",
			password: "password123!",
		},
		{
			name:       "every violation reported at once",
			password:   "abc",
			violations: 4, // length, upper, digit, special
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidatePasswordPolicy(tt.password, pol, ctx)

			if tt.name == "common password rejected" {
				// The deny-list match must be among the violations; exact
				// count depends on which character classes the entry has.
				found := false
				for _, v := range got {
					if strings.Contains(v, "too common") {
						found = true
					}
				}
				if !found {
					t.Errorf("ValidatePasswordPolicy(%q) = %v, want a deny-list violation", tt.password, got)
				}
				return
			}

			if len(got) != tt.violations {
				t.Errorf("ValidatePasswordPolicy(%q) = %v, want %d violations", tt.password, got, tt.violations)
			}
			if tt.contains != "" {
				found := false
				for _, v := range got {
					if strings.Contains(v, tt.contains) {
						found = true
					}
				}
				if !found {
					t.Errorf("ValidatePasswordPolicy(%q) = %v, want a violation containing %q", tt.password, got, tt.contains)
				}
			}
		})
	}
}

func TestValidateLoginCredentials(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		wantErrs int
	}{
		{"valid", "user@example.com", "anything", 0},
		{"empty email", "", "anything", 1},
		{"malformed email", "not-an-email", "anything", 1},
		{"email with spaces", "user @example.com", "anything", 1},
		{"empty password", "user@example.com", "", 1},
		{"both empty", "", "", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateLoginCredentials(tt.email, tt.password)
			if len(errs) != tt.wantErrs {
				t.Errorf("ValidateLoginCredentials(%q, %q) = %v, want %d errors", tt.email, tt.password, errs, tt.wantErrs)
			}
		})
	}
}

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPassword("SecureP@ss123")
	if err != nil {
		t.Fatalf("HashPassword() = %v, want nil", err)
	}
	if hash == "SecureP@ss123" {
		t.Fatal("HashPassword() returned the plaintext")
	}

	if err := ComparePassword(hash, "SecureP@ss123"); err != nil {
		t.Errorf("ComparePassword() with correct password = %v, want nil", err)
	}
	if err := ComparePassword(hash, "WrongP@ss123"); err == nil {
		t.Error("ComparePassword() with wrong password = nil, want error")
	}
}

func TestHashPassword_EmptyRejected(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Error("HashPassword(\"\") = nil, want error")
	}
}
