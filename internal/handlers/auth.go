package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/silasmoran/bastion/internal/models"
	pkghttp "github.com/silasmoran/bastion/pkg/http"
)

// Authenticator runs a login attempt to a terminal state.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string, lc models.LoginContext) (*models.AuthResult, error)
}

// SessionManager covers the session operations exposed over HTTP.
type SessionManager interface {
	SessionValidator
	Logout(ctx context.Context, token string) error
	LogoutAll(ctx context.Context, userID string) (int64, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]*models.Session, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	auth     Authenticator
	sessions SessionManager
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(auth Authenticator, sessions SessionManager, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		sessions: sessions,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	MFACode  string `json:"mfa_code,omitempty"`
	Remember bool   `json:"remember,omitempty"`
}

// LoginResponse represents a successful or MFA-pending login
type LoginResponse struct {
	Status                         string     `json:"status"` // "success" or "mfa_required"
	SessionToken                   string     `json:"session_token,omitempty"`
	SignedToken                    string     `json:"signed_token,omitempty"`
	ExpiresAt                      *time.Time `json:"expires_at,omitempty"`
	ForcePasswordReset             bool       `json:"force_password_reset,omitempty"`
	UsedBackupCode                 bool       `json:"used_backup_code,omitempty"`
	RequiresAdditionalVerification bool       `json:"requires_additional_verification,omitempty"`
}

// SessionResponse is one entry in the session listing.
type SessionResponse struct {
	ID             string     `json:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
	IPAddress      string     `json:"ip_address"`
	UserAgent      string     `json:"user_agent"`
	Current        bool       `json:"current"`
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	lc := models.LoginContext{
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.Header.Get("User-Agent"),
		MFACode:   req.MFACode,
		Remember:  req.Remember,
	}

	result, err := h.auth.Authenticate(r.Context(), req.Email, req.Password, lc)
	if err != nil {
		h.logger.Error("login failed with infrastructure error", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Authentication unavailable")
		return
	}

	switch result.Status {
	case models.AuthSuccess:
		pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
			Status:                         "success",
			SessionToken:                   result.Session.Token,
			SignedToken:                    result.SignedToken,
			ExpiresAt:                      &result.Session.ExpiresAt,
			ForcePasswordReset:             result.ForcePasswordReset,
			UsedBackupCode:                 result.UsedBackupCode,
			RequiresAdditionalVerification: result.RequiresAdditionalVerification,
		})

	case models.AuthMFARequired:
		pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{Status: "mfa_required"})

	default:
		writeAuthFailure(w, result.Failure)
	}
}

// writeAuthFailure maps a tagged authentication failure onto HTTP.
func writeAuthFailure(w http.ResponseWriter, failure *models.AuthError) {
	if failure == nil {
		pkghttp.WriteUnauthorized(w, "Authentication failed")
		return
	}

	switch failure.Kind {
	case models.KindValidation:
		pkghttp.WriteBadRequest(w, failure.Message)
	case models.KindMFAVerificationFailed:
		pkghttp.WriteError(w, http.StatusUnauthorized, string(failure.Kind), failure.Message)
	default:
		if failure.RetryAfter != nil {
			pkghttp.WriteErrorWithRetry(w, http.StatusUnauthorized, string(models.KindAuthenticationFailed), failure.Message, *failure.RetryAfter)
			return
		}
		pkghttp.WriteError(w, http.StatusUnauthorized, string(models.KindAuthenticationFailed), failure.Message)
	}
}

// Logout handles POST /auth/logout, revoking the presented session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		pkghttp.WriteUnauthorized(w, "Missing session token")
		return
	}

	if err := h.sessions.Logout(r.Context(), token); err != nil {
		if err == models.ErrSessionNotFound {
			// Covers double logout as well; the token no longer maps to an
			// active session either way.
			pkghttp.WriteNotFound(w, "Session not found")
			return
		}
		h.logger.Error("logout failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Logout failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll handles POST /auth/logout-all, revoking every session of the
// authenticated user.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	count, err := h.sessions.LogoutAll(r.Context(), session.UserID)
	if err != nil {
		h.logger.Error("logout-all failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Logout failed")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]int64{"revoked": count})
}

// ListSessions handles GET /auth/sessions for the authenticated user.
func (h *AuthHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	sessions, err := h.sessions.ListRecent(r.Context(), session.UserID, 20)
	if err != nil {
		h.logger.Error("failed to list sessions", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Failed to list sessions")
		return
	}

	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionResponse{
			ID:             s.ID,
			CreatedAt:      s.CreatedAt,
			ExpiresAt:      s.ExpiresAt,
			LastAccessedAt: s.LastAccessedAt,
			RevokedAt:      s.RevokedAt,
			IPAddress:      s.IPAddress,
			UserAgent:      s.UserAgent,
			Current:        s.ID == session.ID,
		})
	}

	pkghttp.WriteJSON(w, http.StatusOK, out)
}
