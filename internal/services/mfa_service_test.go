package services

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silasmoran/bastion/internal/auth"
	"github.com/silasmoran/bastion/internal/models"
)

var testEncryptionKey = []byte("0123456789abcdef0123456789abcdef")

func newTestTOTPManager(t *testing.T) *auth.TOTPManager {
	t.Helper()
	tm, err := auth.NewTOTPManager(testEncryptionKey, "bastion-test", 1)
	require.NoError(t, err)
	return tm
}

func currentTOTPCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

func newMFAFixture(t *testing.T, user *models.User) (*MFAService, *stubUserRepo, *MockBackupCodeRepository) {
	t.Helper()
	users := newStubUserRepo(user)
	codes := &MockBackupCodeRepository{}
	log := testLogger()
	svc := NewMFAService(users, codes, newTestTOTPManager(t), NewAuditService(&MockAuditLogRepository{}, log), log, MFAConfig{BackupCodeCount: 10})
	return svc, users, codes
}

func TestMFAService_Setup_GeneratesEnrollment(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", "Jane")
	var storedHashes []string

	svc, users, codes := newMFAFixture(t, user)
	codes.ReplaceFunc = func(ctx context.Context, userID string, codeHashes []string) error {
		storedHashes = codeHashes
		return nil
	}

	setup, err := svc.Setup(context.Background(), "user123")
	require.NoError(t, err)

	assert.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.ProvisioningURI, "otpauth://totp/")
	assert.Contains(t, setup.QRCode, "data:image/png;base64,")
	require.Len(t, setup.BackupCodes, 10)
	require.Len(t, storedHashes, 10)
	for i, code := range setup.BackupCodes {
		assert.Len(t, code, 12)
		assert.Equal(t, auth.HashBackupCode(code), storedHashes[i])
	}

	// The secret lands encrypted and MFA stays off until the first code.
	persisted, err := users.GetByID(context.Background(), "user123")
	require.NoError(t, err)
	assert.False(t, persisted.MFAEnabled)
	assert.NotEmpty(t, persisted.MFASecretEncrypted)
	assert.NotEqual(t, []byte(setup.Secret), persisted.MFASecretEncrypted)
}

func TestMFAService_Setup_RejectsWhenAlreadyEnabled(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", "Jane")
	user.MFAEnabled = true
	svc, _, _ := newMFAFixture(t, user)

	_, err := svc.Setup(context.Background(), "user123")
	assert.ErrorIs(t, err, models.ErrMFAAlreadySetUp)
}

func TestMFAService_Enable_WithValidCode(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", "Jane")
	svc, users, _ := newMFAFixture(t, user)

	setup, err := svc.Setup(context.Background(), "user123")
	require.NoError(t, err)

	err = svc.Enable(context.Background(), "user123", currentTOTPCode(t, setup.Secret))
	require.NoError(t, err)

	persisted, err := users.GetByID(context.Background(), "user123")
	require.NoError(t, err)
	assert.True(t, persisted.MFAEnabled)
}

func TestMFAService_Enable_RejectsInvalidCode(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", "Jane")
	svc, users, _ := newMFAFixture(t, user)

	_, err := svc.Setup(context.Background(), "user123")
	require.NoError(t, err)

	err = svc.Enable(context.Background(), "user123", "000000")
	assert.ErrorIs(t, err, models.ErrMFAInvalidCode)

	persisted, err := users.GetByID(context.Background(), "user123")
	require.NoError(t, err)
	assert.False(t, persisted.MFAEnabled)
}

func TestMFAService_Enable_WithoutEnrollment(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", "Jane")
	svc, _, _ := newMFAFixture(t, user)

	err := svc.Enable(context.Background(), "user123", "123456")
	assert.ErrorIs(t, err, models.ErrMFANotEnrolled)
}

func TestMFAService_Disable_ClearsSecretAndCodes(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", "Jane")
	deleted := false

	svc, users, codes := newMFAFixture(t, user)
	codes.DeleteByUserIDFunc = func(ctx context.Context, userID string) error {
		deleted = true
		return nil
	}

	setup, err := svc.Setup(context.Background(), "user123")
	require.NoError(t, err)
	require.NoError(t, svc.Enable(context.Background(), "user123", currentTOTPCode(t, setup.Secret)))

	require.NoError(t, svc.Disable(context.Background(), "user123"))

	persisted, err := users.GetByID(context.Background(), "user123")
	require.NoError(t, err)
	assert.False(t, persisted.MFAEnabled)
	assert.Empty(t, persisted.MFASecretEncrypted)
	assert.True(t, deleted)
}

func TestMFAService_VerifyCode_TOTPPreferredOverBackupCode(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", "Jane")
	consumed := 0

	svc, users, codes := newMFAFixture(t, user)
	codes.ConsumeFunc = func(ctx context.Context, userID, codeHash string) (bool, error) {
		consumed++
		return true, nil
	}

	setup, err := svc.Setup(context.Background(), "user123")
	require.NoError(t, err)
	require.NoError(t, svc.Enable(context.Background(), "user123", currentTOTPCode(t, setup.Secret)))

	enabled, err := users.GetByID(context.Background(), "user123")
	require.NoError(t, err)

	result, err := svc.VerifyCode(context.Background(), enabled, currentTOTPCode(t, setup.Secret))
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.False(t, result.UsedBackupCode)
	assert.Equal(t, 0, consumed, "a valid TOTP code must not touch the backup codes")
}

func TestMFAService_VerifyCode_FallsBackToBackupCode(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", "Jane")

	svc, users, codes := newMFAFixture(t, user)

	setup, err := svc.Setup(context.Background(), "user123")
	require.NoError(t, err)
	require.NoError(t, svc.Enable(context.Background(), "user123", currentTOTPCode(t, setup.Secret)))

	backupCode := setup.BackupCodes[0]
	used := map[string]bool{}
	codes.ConsumeFunc = func(ctx context.Context, userID, codeHash string) (bool, error) {
		if codeHash != auth.HashBackupCode(backupCode) || used[codeHash] {
			return false, nil
		}
		used[codeHash] = true
		return true, nil
	}

	enabled, err := users.GetByID(context.Background(), "user123")
	require.NoError(t, err)

	result, err := svc.VerifyCode(context.Background(), enabled, backupCode)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.True(t, result.UsedBackupCode)

	// Single use: the same code fails the second time.
	result, err = svc.VerifyCode(context.Background(), enabled, backupCode)
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestMFAService_VerifyCode_RequiresEnabledMFA(t *testing.T) {
	user := NewTestUser("user123", "user@example.com", "Jane")
	svc, _, _ := newMFAFixture(t, user)

	_, err := svc.VerifyCode(context.Background(), user, "123456")
	assert.ErrorIs(t, err, models.ErrMFANotEnrolled)
}
