package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/silasmoran/bastion/internal/models"
	pkghttp "github.com/silasmoran/bastion/pkg/http"
)

// MFAManager covers the MFA lifecycle operations exposed over HTTP.
type MFAManager interface {
	Setup(ctx context.Context, userID string) (*models.MFASetup, error)
	Enable(ctx context.Context, userID, code string) error
	Disable(ctx context.Context, userID string) error
	VerifyUserCode(ctx context.Context, userID, code string) (models.MFAVerification, error)
	RemainingBackupCodes(ctx context.Context, userID string) (int, error)
}

// MFAHandler handles MFA-related HTTP requests
type MFAHandler struct {
	mfa    MFAManager
	logger *slog.Logger
}

// NewMFAHandler creates a new MFA handler
func NewMFAHandler(mfa MFAManager, logger *slog.Logger) *MFAHandler {
	return &MFAHandler{mfa: mfa, logger: logger}
}

// MFASetupResponse returns enrollment material exactly once.
type MFASetupResponse struct {
	Secret          string   `json:"secret"`
	ProvisioningURI string   `json:"provisioning_uri"`
	QRCode          string   `json:"qr_code"`
	BackupCodes     []string `json:"backup_codes"`
}

// EnableMFARequest carries the first TOTP code proving enrollment.
type EnableMFARequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// VerifyMFARequest carries a code for standalone verification. Backup codes
// are 12 characters, TOTP codes 6, so length is checked downstream.
type VerifyMFARequest struct {
	Code string `json:"code" validate:"required,min=6,max=12"`
}

// Setup handles POST /mfa/setup to begin enrollment.
func (h *MFAHandler) Setup(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	setup, err := h.mfa.Setup(r.Context(), session.UserID)
	if err != nil {
		if errors.Is(err, models.ErrMFAAlreadySetUp) {
			pkghttp.WriteConflict(w, "MFA is already enabled")
			return
		}
		h.logger.Error("failed to set up MFA", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Setup failed")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MFASetupResponse{
		Secret:          setup.Secret,
		ProvisioningURI: setup.ProvisioningURI,
		QRCode:          setup.QRCode,
		BackupCodes:     setup.BackupCodes,
	})
}

// Enable handles POST /mfa/enable, confirming enrollment with a first code.
func (h *MFAHandler) Enable(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req EnableMFARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.mfa.Enable(r.Context(), session.UserID, req.Code); err != nil {
		switch {
		case errors.Is(err, models.ErrMFAInvalidCode):
			pkghttp.WriteError(w, http.StatusUnauthorized, "mfa_verification_failed", "Invalid verification code")
		case errors.Is(err, models.ErrMFANotEnrolled):
			pkghttp.WriteBadRequest(w, "MFA setup has not been started")
		case errors.Is(err, models.ErrMFAAlreadySetUp):
			pkghttp.WriteConflict(w, "MFA is already enabled")
		default:
			h.logger.Error("failed to enable MFA", slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Enable failed")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]bool{"enabled": true})
}

// Verify handles POST /mfa/verify for standalone step-up verification.
func (h *MFAHandler) Verify(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req VerifyMFARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.mfa.VerifyUserCode(r.Context(), session.UserID, req.Code)
	if err != nil {
		if errors.Is(err, models.ErrMFANotEnrolled) {
			pkghttp.WriteBadRequest(w, "MFA is not enabled")
			return
		}
		h.logger.Error("MFA verification failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Verification failed")
		return
	}

	if !result.Valid {
		pkghttp.WriteError(w, http.StatusUnauthorized, "mfa_verification_failed", "Invalid verification code")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]bool{
		"valid":            true,
		"used_backup_code": result.UsedBackupCode,
	})
}

// Disable handles POST /mfa/disable.
func (h *MFAHandler) Disable(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	if err := h.mfa.Disable(r.Context(), session.UserID); err != nil {
		h.logger.Error("failed to disable MFA", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Disable failed")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]bool{"enabled": false})
}

// BackupCodes handles GET /mfa/backup-codes, reporting how many remain.
func (h *MFAHandler) BackupCodes(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	remaining, err := h.mfa.RemainingBackupCodes(r.Context(), session.UserID)
	if err != nil {
		h.logger.Error("failed to count backup codes", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Lookup failed")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]int{"remaining": remaining})
}
