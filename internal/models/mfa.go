package models

// MFASetup contains the enrollment material returned once during setup.
// The plain secret and backup codes are shown to the user exactly once and
// never stored in this form.
type MFASetup struct {
	Secret          string   `json:"secret"`
	ProvisioningURI string   `json:"provisioning_uri"`
	QRCode          string   `json:"qr_code"` // PNG data URL
	BackupCodes     []string `json:"backup_codes"`
}

// MFAVerification is the outcome of verifying a submitted MFA code.
type MFAVerification struct {
	Valid          bool
	UsedBackupCode bool
}
