package logger

import "testing"

func TestMaskToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"empty", "", ""},
		{"short token", "abc", "a..."},
		{"exactly prefix length", "12345678", "1..."},
		{"long token", "Kx9fQ2mT7pLw3nRv8sYd", "Kx9fQ2mT..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskToken(tt.token); got != tt.want {
				t.Errorf("MaskToken(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}

func TestSanitizedEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{"typical address", "user@example.com", "u***@*******.com"},
		{"single char local part", "u@example.com", "u@*******.com"},
		{"subdomain", "user@mail.example.com", "u***@****.*******.com"},
		{"no at sign", "not-an-email", "[invalid-email]"},
		{"multiple at signs", "a@b@c.com", "[invalid-email]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizedEmail(tt.email); got != tt.want {
				t.Errorf("SanitizedEmail(%q) = %q, want %q", tt.email, got, tt.want)
			}
		})
	}
}
