package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	totpPeriod     = 30
	totpSecretSize = 20 // 160 bits, base32-encoded
	backupCodeLen  = 12
)

// Charset for backup codes: A-Z 2-9 minus ambiguous 0/O/1/I/L.
const backupCodeCharset = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// TOTPManager handles TOTP enrollment, secret encryption, and validation.
// Secrets are stored AES-256-GCM encrypted; the encryption key is injected
// once at startup.
type TOTPManager struct {
	encryptionKey []byte // 32-byte AES-256 key
	issuer        string
	skew          uint // accepted adjacent time steps, usually 1
}

// NewTOTPManager creates a new TOTP manager.
// encryptionKey must be exactly 32 bytes for AES-256.
func NewTOTPManager(encryptionKey []byte, issuer string, skew uint) (*TOTPManager, error) {
	if len(encryptionKey) != 32 {
		return nil, fmt.Errorf("encryption key must be exactly 32 bytes, got %d", len(encryptionKey))
	}

	return &TOTPManager{
		encryptionKey: encryptionKey,
		issuer:        issuer,
		skew:          skew,
	}, nil
}

// Enrollment is the material produced once during MFA setup.
type Enrollment struct {
	Secret          string // base32, shown to the user once
	EncryptedSecret []byte
	Nonce           []byte
	ProvisioningURI string
	QRCode          string // PNG data URL
}

// GenerateEnrollment creates a fresh 160-bit secret with its provisioning
// URI (SHA-1, 6 digits, 30s period) and a QR code for authenticator apps.
func (tm *TOTPManager) GenerateEnrollment(accountName string) (*Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      tm.issuer,
		AccountName: accountName,
		SecretSize:  totpSecretSize,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	encrypted, nonce, err := tm.EncryptSecret([]byte(key.Secret()))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt secret: %w", err)
	}

	qr, err := qrcode.New(key.URL(), qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}

	qrImage, err := qr.PNG(200)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	return &Enrollment{
		Secret:          key.Secret(),
		EncryptedSecret: encrypted,
		Nonce:           nonce,
		ProvisioningURI: key.URL(),
		QRCode:          "data:image/png;base64," + base64.StdEncoding.EncodeToString(qrImage),
	}, nil
}

// EncryptSecret encrypts a TOTP secret using AES-256-GCM.
// Returns: (encryptedBytes, nonce, error)
func (tm *TOTPManager) EncryptSecret(secretBytes []byte) ([]byte, []byte, error) {
	block, err := aes.NewCipher(tm.encryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, secretBytes, nil)

	return ciphertext, nonce, nil
}

// DecryptSecret decrypts an encrypted TOTP secret.
func (tm *TOTPManager) DecryptSecret(encryptedBytes, nonce []byte) ([]byte, error) {
	block, err := aes.NewCipher(tm.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, encryptedBytes, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt secret: %w", err)
	}

	return plaintext, nil
}

// Validate checks a 6-digit code against a base32 secret at the given
// instant, accepting the current step and tm.skew adjacent steps. Malformed
// input returns false, never an error.
func (tm *TOTPManager) Validate(secret, code string, at time.Time) bool {
	valid, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      tm.skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return valid
}

// GenerateBackupCodes generates n single-use recovery codes. Codes are
// 12 characters from an ambiguity-free charset, drawn from crypto/rand.
func GenerateBackupCodes(n int) ([]string, error) {
	codes := make([]string, n)
	buf := make([]byte, backupCodeLen)

	for i := 0; i < n; i++ {
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate backup code: %w", err)
		}
		code := make([]byte, backupCodeLen)
		for j, b := range buf {
			code[j] = backupCodeCharset[int(b)%len(backupCodeCharset)]
		}
		codes[i] = string(code)
	}

	return codes, nil
}

// HashBackupCode returns the SHA-256 hex digest of a backup code. The digest
// is deterministic so consumption can be a single conditional update keyed
// by (user_id, code_hash).
func HashBackupCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return fmt.Sprintf("%x", sum)
}
