package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Event types for audit logging
const (
	AuditEventLogin      = "login"
	AuditEventLoginFail  = "login_failed"
	AuditEventLockout    = "account_locked"
	AuditEventLogout     = "logout"
	AuditEventMFASetup   = "mfa_setup"
	AuditEventMFAEnable  = "mfa_enabled"
	AuditEventMFADisable = "mfa_disabled"
	AuditEventMFAVerify  = "mfa_verify"
)

type AuditLog struct {
	ID            string
	EventType     string
	UserID        *string
	Success       bool
	FailureReason *string
	IPAddress     *string
	UserAgent     *string
	Metadata      AuditMetadata
	CreatedAt     time.Time
}

// AuditMetadata holds additional context for audit events
type AuditMetadata map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (am *AuditMetadata) Scan(value interface{}) error {
	if value == nil {
		*am = make(AuditMetadata)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*am = AuditMetadata(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (am AuditMetadata) Value() (driver.Value, error) {
	if am == nil {
		return nil, nil
	}
	return json.Marshal(am)
}
