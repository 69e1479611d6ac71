package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	MFA      MFAConfig
	Lockout  LockoutConfig
	Session  SessionConfig
	Risk     RiskConfig
	Email    EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port         string
	Env          string
	LogLevel     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// CIDR ranges whose forwarding headers are trusted for client IP
	// extraction.
	TrustedProxies []string
}

type AuthConfig struct {
	TokenSecret string
	TokenIssuer string
}

type MFAConfig struct {
	// 32-byte AES-256 key for TOTP secret encryption, base64-encoded in the
	// environment.
	EncryptionKey   []byte
	Issuer          string
	Skew            uint
	BackupCodeCount int
}

type LockoutConfig struct {
	MaxAttempts     int
	LockoutDuration time.Duration
}

type SessionConfig struct {
	DefaultDuration       time.Duration
	ElevatedRiskDuration  time.Duration
	HighRiskDuration      time.Duration
	RememberDuration      time.Duration
	AccessRefreshInterval time.Duration

	// How long expired sessions stay queryable before the retention sweep
	// hard-deletes them, and how often the sweep runs.
	Retention       time.Duration
	CleanupInterval time.Duration
}

type RiskConfig struct {
	NewIPWeight            int
	NewDeviceWeight        int
	PossibleStuffingWeight int
	StuffingWindow         time.Duration

	ElevatedThreshold int
	HighThreshold     int
	Ceiling           int
}

type EmailConfig struct {
	Enabled     bool
	AWSRegion   string
	FromAddress string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	tokenSecret := getEnv("AUTH_TOKEN_SECRET", "")
	if tokenSecret == "" {
		return nil, fmt.Errorf("AUTH_TOKEN_SECRET is required")
	}

	env := getEnv("ENV", "development")

	mfaKey, err := parseMFAKey(getEnv("MFA_ENCRYPTION_KEY", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "bastion"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Env:          env,
			LogLevel:     getEnv("LOG_LEVEL", "info"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
		},
		Auth: AuthConfig{
			TokenSecret: tokenSecret,
			TokenIssuer: getEnv("AUTH_TOKEN_ISSUER", "bastion"),
		},
		MFA: MFAConfig{
			EncryptionKey:   mfaKey,
			Issuer:          getEnv("MFA_ISSUER", "bastion"),
			Skew:            uint(getEnvAsInt("MFA_TOTP_SKEW", 1)),
			BackupCodeCount: getEnvAsInt("MFA_BACKUP_CODE_COUNT", 10),
		},
		Lockout: LockoutConfig{
			MaxAttempts:     getEnvAsInt("LOCKOUT_MAX_ATTEMPTS", 5),
			LockoutDuration: getEnvAsDuration("LOCKOUT_DURATION", 15*time.Minute),
		},
		Session: SessionConfig{
			DefaultDuration:       getEnvAsDuration("SESSION_DEFAULT_DURATION", 24*time.Hour),
			ElevatedRiskDuration:  getEnvAsDuration("SESSION_ELEVATED_RISK_DURATION", 8*time.Hour),
			HighRiskDuration:      getEnvAsDuration("SESSION_HIGH_RISK_DURATION", 1*time.Hour),
			RememberDuration:      getEnvAsDuration("SESSION_REMEMBER_DURATION", 30*24*time.Hour),
			AccessRefreshInterval: getEnvAsDuration("SESSION_ACCESS_REFRESH_INTERVAL", 5*time.Minute),
			Retention:             getEnvAsDuration("SESSION_RETENTION", 30*24*time.Hour),
			CleanupInterval:       getEnvAsDuration("SESSION_CLEANUP_INTERVAL", 1*time.Hour),
		},
		Risk: RiskConfig{
			NewIPWeight:            getEnvAsInt("RISK_NEW_IP_WEIGHT", 30),
			NewDeviceWeight:        getEnvAsInt("RISK_NEW_DEVICE_WEIGHT", 20),
			PossibleStuffingWeight: getEnvAsInt("RISK_STUFFING_WEIGHT", 40),
			StuffingWindow:         getEnvAsDuration("RISK_STUFFING_WINDOW", 15*time.Minute),
			ElevatedThreshold:      getEnvAsInt("RISK_ELEVATED_THRESHOLD", 30),
			HighThreshold:          getEnvAsInt("RISK_HIGH_THRESHOLD", 60),
			Ceiling:                getEnvAsInt("RISK_CEILING", 80),
		},
		Email: EmailConfig{
			Enabled:     getEnvAsBool("EMAIL_ALERTS_ENABLED", false),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if cfg.Email.Enabled && cfg.Email.FromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when EMAIL_ALERTS_ENABLED is set")
	}

	if err := validateTokenSecret(tokenSecret, env); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateTokenSecret enforces minimum security standards for the signing secret
func validateTokenSecret(secret, env string) error {
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("AUTH_TOKEN_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("AUTH_TOKEN_SECRET cannot be a common weak value")
		}
	}

	return nil
}

// parseMFAKey decodes and checks the TOTP secret encryption key. The key is
// required; authentication cannot run without MFA support material.
func parseMFAKey(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, fmt.Errorf("MFA_ENCRYPTION_KEY is required")
	}

	// Generated keys are usually base64, but a raw 32-byte string is
	// accepted too. A raw key can itself be valid base64 of the wrong
	// length, so only take the decoded form when it is exactly 32 bytes.
	if decoded, err := base64.StdEncoding.DecodeString(encoded); err == nil && len(decoded) == 32 {
		return decoded, nil
	}
	if len(encoded) == 32 {
		return []byte(encoded), nil
	}

	return nil, fmt.Errorf("MFA_ENCRYPTION_KEY must decode to exactly 32 bytes")
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}
