package config

import (
	"encoding/base64"
	"os"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	os.Setenv("AUTH_TOKEN_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("MFA_ENCRYPTION_KEY", base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef")))
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"LockoutDuration", cfg.Lockout.LockoutDuration, 15 * time.Minute},
		{"SessionDefaultDuration", cfg.Session.DefaultDuration, 24 * time.Hour},
		{"SessionElevatedRiskDuration", cfg.Session.ElevatedRiskDuration, 8 * time.Hour},
		{"SessionHighRiskDuration", cfg.Session.HighRiskDuration, 1 * time.Hour},
		{"SessionRememberDuration", cfg.Session.RememberDuration, 30 * 24 * time.Hour},
		{"AccessRefreshInterval", cfg.Session.AccessRefreshInterval, 5 * time.Minute},
		{"StuffingWindow", cfg.Risk.StuffingWindow, 15 * time.Minute},
		{"ReadTimeout", cfg.Server.ReadTimeout, 15 * time.Second},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}

	if cfg.Lockout.MaxAttempts != 5 {
		t.Errorf("MaxAttempts: got %d, want 5", cfg.Lockout.MaxAttempts)
	}
	if cfg.Risk.NewIPWeight != 30 || cfg.Risk.NewDeviceWeight != 20 || cfg.Risk.PossibleStuffingWeight != 40 {
		t.Errorf("risk weights: got %d/%d/%d, want 30/20/40",
			cfg.Risk.NewIPWeight, cfg.Risk.NewDeviceWeight, cfg.Risk.PossibleStuffingWeight)
	}
	if cfg.Risk.Ceiling != 80 {
		t.Errorf("Ceiling: got %d, want 80", cfg.Risk.Ceiling)
	}
	if cfg.MFA.BackupCodeCount != 10 {
		t.Errorf("BackupCodeCount: got %d, want 10", cfg.MFA.BackupCodeCount)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("LOCKOUT_MAX_ATTEMPTS", "3")
	os.Setenv("LOCKOUT_DURATION", "30m")
	os.Setenv("SESSION_DEFAULT_DURATION", "12h")
	os.Setenv("RISK_CEILING", "90")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Lockout.MaxAttempts != 3 {
		t.Errorf("MaxAttempts: got %d, want 3", cfg.Lockout.MaxAttempts)
	}
	if cfg.Lockout.LockoutDuration != 30*time.Minute {
		t.Errorf("LockoutDuration: got %v, want 30m", cfg.Lockout.LockoutDuration)
	}
	if cfg.Session.DefaultDuration != 12*time.Hour {
		t.Errorf("DefaultDuration: got %v, want 12h", cfg.Session.DefaultDuration)
	}
	if cfg.Risk.Ceiling != 90 {
		t.Errorf("Ceiling: got %d, want 90", cfg.Risk.Ceiling)
	}
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("LOCKOUT_DURATION", "not-a-duration")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Lockout.LockoutDuration != 15*time.Minute {
		t.Errorf("LockoutDuration with invalid value: got %v, want 15m", cfg.Lockout.LockoutDuration)
	}
}

func TestLoad_MissingTokenSecret(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("MFA_ENCRYPTION_KEY", base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef")))
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() without AUTH_TOKEN_SECRET should fail")
	}
}

func TestLoad_WeakTokenSecret(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("AUTH_TOKEN_SECRET", "short")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() with a short AUTH_TOKEN_SECRET should fail")
	}
}

func TestLoad_MFAKeyValidation(t *testing.T) {
	setRequiredEnv(t)
	defer os.Clearenv()

	// Raw 32-byte key without base64 encoding is accepted.
	os.Setenv("MFA_ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with raw 32-byte key = %v, want nil", err)
	}
	if len(cfg.MFA.EncryptionKey) != 32 {
		t.Errorf("EncryptionKey length: got %d, want 32", len(cfg.MFA.EncryptionKey))
	}

	// Wrong length fails.
	os.Setenv("MFA_ENCRYPTION_KEY", "too-short")
	if _, err := Load(); err == nil {
		t.Fatal("Load() with a short MFA_ENCRYPTION_KEY should fail")
	}

	// Missing fails.
	os.Unsetenv("MFA_ENCRYPTION_KEY")
	if _, err := Load(); err == nil {
		t.Fatal("Load() without MFA_ENCRYPTION_KEY should fail")
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db.internal", Port: 5433, User: "svc",
		Password: "pw", Name: "bastion", SSLMode: "require",
	}

	want := "host=db.internal port=5433 user=svc password=pw dbname=bastion sslmode=require"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
