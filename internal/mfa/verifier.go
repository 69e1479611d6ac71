package mfa

import (
	"context"
	"fmt"
	"time"

	"github.com/silasmoran/bastion/internal/auth"
	"github.com/silasmoran/bastion/internal/models"
)

// Verifier is one strategy for verifying a submitted MFA code.
type Verifier interface {
	Name() string
	Verify(ctx context.Context, u *models.User, code string) (models.MFAVerification, error)
}

// BackupCodeConsumer atomically consumes one unused backup code. The
// implementation must guarantee that two concurrent calls for the same
// (userID, codeHash) cannot both report consumed=true.
type BackupCodeConsumer interface {
	Consume(ctx context.Context, userID, codeHash string) (bool, error)
}

// TOTPVerifier validates codes against the user's enrolled TOTP secret.
type TOTPVerifier struct {
	totp *auth.TOTPManager
	now  func() time.Time
}

func NewTOTPVerifier(totp *auth.TOTPManager) *TOTPVerifier {
	return &TOTPVerifier{totp: totp, now: time.Now}
}

// NewTOTPVerifierAt builds a verifier with a fixed clock, for tests.
func NewTOTPVerifierAt(totp *auth.TOTPManager, now func() time.Time) *TOTPVerifier {
	return &TOTPVerifier{totp: totp, now: now}
}

func (v *TOTPVerifier) Name() string { return "totp" }

func (v *TOTPVerifier) Verify(ctx context.Context, u *models.User, code string) (models.MFAVerification, error) {
	if len(u.MFASecretEncrypted) == 0 {
		// No enrolled secret; let another strategy try.
		return models.MFAVerification{}, nil
	}

	secret, err := v.totp.DecryptSecret(u.MFASecretEncrypted, u.MFASecretNonce)
	if err != nil {
		return models.MFAVerification{}, fmt.Errorf("failed to decrypt TOTP secret: %w", err)
	}

	if !v.totp.Validate(string(secret), code, v.now()) {
		return models.MFAVerification{Valid: false}, nil
	}

	return models.MFAVerification{Valid: true}, nil
}

// BackupCodeVerifier matches codes against the user's unused backup codes.
// A match consumes that exact code through the store's conditional update,
// so it can never validate again once persisted.
type BackupCodeVerifier struct {
	store BackupCodeConsumer
}

func NewBackupCodeVerifier(store BackupCodeConsumer) *BackupCodeVerifier {
	return &BackupCodeVerifier{store: store}
}

func (v *BackupCodeVerifier) Name() string { return "backup_code" }

func (v *BackupCodeVerifier) Verify(ctx context.Context, u *models.User, code string) (models.MFAVerification, error) {
	if len(code) == 0 {
		return models.MFAVerification{}, nil
	}

	consumed, err := v.store.Consume(ctx, u.ID, auth.HashBackupCode(code))
	if err != nil {
		return models.MFAVerification{}, fmt.Errorf("failed to consume backup code: %w", err)
	}
	if !consumed {
		return models.MFAVerification{Valid: false}, nil
	}

	return models.MFAVerification{Valid: true, UsedBackupCode: true}, nil
}

// VerifyWithAny tries each verifier in order and returns the first match.
// The TOTP strategy goes first so a valid authenticator code never burns a
// backup code.
func VerifyWithAny(ctx context.Context, verifiers []Verifier, u *models.User, code string) (models.MFAVerification, error) {
	for _, v := range verifiers {
		result, err := v.Verify(ctx, u, code)
		if err != nil {
			return models.MFAVerification{}, err
		}
		if result.Valid {
			return result, nil
		}
	}
	return models.MFAVerification{Valid: false}, nil
}
