package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/silasmoran/bastion/internal/auth"
	"github.com/silasmoran/bastion/internal/mfa"
	"github.com/silasmoran/bastion/internal/models"
	"github.com/silasmoran/bastion/pkg/logger"
)

// BackupCodeRepository defines the interface for backup code persistence
type BackupCodeRepository interface {
	Replace(ctx context.Context, userID string, codeHashes []string) error
	Consume(ctx context.Context, userID, codeHash string) (bool, error)
	CountUnused(ctx context.Context, userID string) (int, error)
	DeleteByUserID(ctx context.Context, userID string) error
}

// MFAConfig holds MFA configuration
type MFAConfig struct {
	BackupCodeCount int
}

// MFAService handles MFA setup, verification, and management
type MFAService struct {
	users     UserRepository
	codes     BackupCodeRepository
	totp      *auth.TOTPManager
	verifiers []mfa.Verifier
	audit     *AuditService
	auditLog  *logger.AuditLogger
	logger    *slog.Logger
	config    MFAConfig
}

// NewMFAService creates a new MFA service. Verification tries TOTP first,
// then backup codes, so a valid authenticator code never burns a recovery
// code.
func NewMFAService(
	users UserRepository,
	codes BackupCodeRepository,
	totp *auth.TOTPManager,
	audit *AuditService,
	log *slog.Logger,
	config MFAConfig,
) *MFAService {
	if config.BackupCodeCount <= 0 {
		config.BackupCodeCount = 10
	}
	return &MFAService{
		users: users,
		codes: codes,
		totp:  totp,
		verifiers: []mfa.Verifier{
			mfa.NewTOTPVerifier(totp),
			mfa.NewBackupCodeVerifier(codes),
		},
		audit:    audit,
		auditLog: logger.NewAuditLogger(log),
		logger:   log,
		config:   config,
	}
}

// Setup generates enrollment material for a user: an encrypted TOTP secret
// stored on the user row (MFA stays disabled until the first code verifies)
// and a fresh set of single-use backup codes. The plain secret and codes are
// returned once and never stored.
func (s *MFAService) Setup(ctx context.Context, userID string) (*models.MFASetup, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.MFAEnabled {
		return nil, models.ErrMFAAlreadySetUp
	}

	enrollment, err := s.totp.GenerateEnrollment(user.Email)
	if err != nil {
		s.logger.Error("failed to generate TOTP enrollment", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	backupCodes, err := auth.GenerateBackupCodes(s.config.BackupCodeCount)
	if err != nil {
		s.logger.Error("failed to generate backup codes", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hashes := make([]string, len(backupCodes))
	for i, code := range backupCodes {
		hashes[i] = auth.HashBackupCode(code)
	}

	delta := models.UserSecurityDelta{
		MFASecretEncrypted: enrollment.EncryptedSecret,
		MFASecretNonce:     enrollment.Nonce,
	}
	if _, err := applyUserDelta(ctx, s.users, user, func(*models.User) models.UserSecurityDelta { return delta }); err != nil {
		s.logger.Error("failed to store MFA secret", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.codes.Replace(ctx, userID, hashes); err != nil {
		s.logger.Error("failed to store backup codes", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	_ = s.audit.Record(ctx, &models.AuditLog{
		EventType: models.AuditEventMFASetup,
		UserID:    &user.ID,
		Success:   true,
	})
	s.auditLog.LogAccountAction(models.AuditEventMFASetup, user.ID, "", nil)

	s.logger.Info("MFA setup initiated", slog.String("user_id", userID))

	return &models.MFASetup{
		Secret:          enrollment.Secret,
		ProvisioningURI: enrollment.ProvisioningURI,
		QRCode:          enrollment.QRCode,
		BackupCodes:     backupCodes,
	}, nil
}

// Enable turns MFA on after the user proves possession of the enrolled
// secret with a first valid TOTP code.
func (s *MFAService) Enable(ctx context.Context, userID, code string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.MFAEnabled {
		return models.ErrMFAAlreadySetUp
	}
	if len(user.MFASecretEncrypted) == 0 {
		return models.ErrMFANotEnrolled
	}

	verifier := mfa.NewTOTPVerifier(s.totp)
	result, err := verifier.Verify(ctx, user, code)
	if err != nil {
		s.logger.Error("TOTP verification error during enable", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !result.Valid {
		s.logger.Warn("invalid TOTP code during MFA enable", slog.String("user_id", userID))
		return models.ErrMFAInvalidCode
	}

	enabled := true
	delta := models.UserSecurityDelta{MFAEnabled: &enabled}
	if _, err := applyUserDelta(ctx, s.users, user, func(*models.User) models.UserSecurityDelta { return delta }); err != nil {
		return err
	}

	_ = s.audit.Record(ctx, &models.AuditLog{
		EventType: models.AuditEventMFAEnable,
		UserID:    &user.ID,
		Success:   true,
	})
	s.auditLog.LogAccountAction(models.AuditEventMFAEnable, user.ID, "", nil)

	s.logger.Info("MFA enabled", slog.String("user_id", userID))
	return nil
}

// Disable turns MFA off, discarding the secret and all backup codes.
func (s *MFAService) Disable(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	disabled := false
	delta := models.UserSecurityDelta{MFAEnabled: &disabled, ClearMFASecret: true}
	if _, err := applyUserDelta(ctx, s.users, user, func(*models.User) models.UserSecurityDelta { return delta }); err != nil {
		return err
	}

	if err := s.codes.DeleteByUserID(ctx, userID); err != nil {
		s.logger.Error("failed to delete backup codes", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	_ = s.audit.Record(ctx, &models.AuditLog{
		EventType: models.AuditEventMFADisable,
		UserID:    &user.ID,
		Success:   true,
	})
	s.auditLog.LogAccountAction(models.AuditEventMFADisable, user.ID, "", nil)

	s.logger.Info("MFA disabled", slog.String("user_id", userID))
	return nil
}

// VerifyCode checks a submitted code for an MFA-enabled user, trying each
// strategy in order. A backup code match is consumed atomically inside the
// store and will never validate again.
func (s *MFAService) VerifyCode(ctx context.Context, user *models.User, code string) (models.MFAVerification, error) {
	if !user.MFAEnabled {
		return models.MFAVerification{}, models.ErrMFANotEnrolled
	}
	return mfa.VerifyWithAny(ctx, s.verifiers, user, code)
}

// VerifyUserCode is the standalone verification entry point used outside the
// login flow (e.g., step-up confirmation for sensitive operations).
func (s *MFAService) VerifyUserCode(ctx context.Context, userID, code string) (models.MFAVerification, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.MFAVerification{}, models.ErrNotFound
		}
		return models.MFAVerification{}, err
	}

	result, err := s.VerifyCode(ctx, user, code)
	if err != nil {
		return models.MFAVerification{}, err
	}

	_ = s.audit.Record(ctx, &models.AuditLog{
		EventType: models.AuditEventMFAVerify,
		UserID:    &user.ID,
		Success:   result.Valid,
	})

	return result, nil
}

// RemainingBackupCodes reports how many recovery codes the user has left.
func (s *MFAService) RemainingBackupCodes(ctx context.Context, userID string) (int, error) {
	return s.codes.CountUnused(ctx, userID)
}
