package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/silasmoran/bastion/internal/auth"
	"github.com/silasmoran/bastion/internal/mfa"
	"github.com/silasmoran/bastion/internal/models"
	"github.com/silasmoran/bastion/internal/policy"
	"github.com/silasmoran/bastion/internal/risk"
	pkgauth "github.com/silasmoran/bastion/pkg/auth"
	"github.com/silasmoran/bastion/pkg/logger"
)

// UserRepository defines the interface for user persistence
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	ApplyDelta(ctx context.Context, userID string, version int64, delta models.UserSecurityDelta) (*models.User, error)
}

// MFAVerifier verifies a submitted MFA code for a user during login.
type MFAVerifier interface {
	VerifyCode(ctx context.Context, user *models.User, code string) (models.MFAVerification, error)
}

// How many recent sessions feed the risk analyzer.
const riskHistoryLimit = 10

// How many times to regenerate a session token on a store collision.
const tokenCollisionRetries = 3

// Bcrypt hash of an unguessable value, compared against when the email does
// not resolve to a user so both paths pay the hash cost.
const unknownUserHash = "$2a$14$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// applyUserDelta persists a security delta under the optimistic version
// check, retrying once on a concurrent update. The delta is recomputed from
// the fresh row so the retry never replays stale arithmetic.
func applyUserDelta(ctx context.Context, users UserRepository, u *models.User, compute func(*models.User) models.UserSecurityDelta) (*models.User, error) {
	updated, err := users.ApplyDelta(ctx, u.ID, u.Version, compute(u))
	if !errors.Is(err, models.ErrVersionConflict) {
		return updated, err
	}

	fresh, err := users.GetByID(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return users.ApplyDelta(ctx, fresh.ID, fresh.Version, compute(fresh))
}

// AuthService orchestrates the login flow: credential validation, lockout
// enforcement, password verification, risk analysis, MFA, and session
// issuance. All policy decisions are made by pure functions; this service
// sequences them and persists their deltas.
type AuthService struct {
	users      UserRepository
	sessions   SessionRepository
	mfaCheck   MFAVerifier
	analyzer   *risk.Analyzer
	tokens     *auth.TokenManager
	audit      *AuditService
	alerts     LoginAlertSender
	lockout    policy.LockoutPolicy
	sessionPol policy.SessionPolicy
	logger     *slog.Logger
	auditLog   *logger.AuditLogger
	now        func() time.Time
}

func NewAuthService(
	users UserRepository,
	sessions SessionRepository,
	mfaCheck MFAVerifier,
	analyzer *risk.Analyzer,
	tokens *auth.TokenManager,
	audit *AuditService,
	alerts LoginAlertSender,
	lockout policy.LockoutPolicy,
	sessionPol policy.SessionPolicy,
	log *slog.Logger,
) *AuthService {
	return &AuthService{
		users:      users,
		sessions:   sessions,
		mfaCheck:   mfaCheck,
		analyzer:   analyzer,
		tokens:     tokens,
		audit:      audit,
		alerts:     alerts,
		lockout:    lockout,
		sessionPol: sessionPol,
		logger:     log,
		auditLog:   logger.NewAuditLogger(log),
		now:        time.Now,
	}
}

// Authenticate runs one login attempt to a terminal state. The error return
// is reserved for infrastructure failures; every business outcome, including
// rejection, arrives as an AuthResult. Unknown email, wrong password, and a
// locked or blocked account all produce the same failure kind so the response
// never confirms an account exists.
func (s *AuthService) Authenticate(ctx context.Context, email, password string, lc models.LoginContext) (*models.AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	if fieldErrs := pkgauth.ValidateLoginCredentials(email, password); len(fieldErrs) > 0 {
		return failedResult(models.NewAuthError(models.KindValidation, fieldErrs[0].Message)), nil
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Burn a hash comparison anyway to keep timing flat.
			_ = pkgauth.ComparePassword(unknownUserHash, password)
			s.auditLog.LogAuthAttempt(logger.AuditEvent{
				EventType:     models.AuditEventLoginFail,
				IPAddress:     lc.IPAddress,
				UserAgent:     lc.UserAgent,
				Success:       false,
				FailureReason: "unknown_user",
				Metadata:      map[string]string{"email": logger.SanitizedEmail(email)},
			})
			_ = s.audit.RecordAuthEvent(ctx, models.AuditEventLoginFail, nil, lc, false, "unknown_user")
			return failedResult(invalidCredentials()), nil
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	now := s.now()

	if decision := policy.ShouldAllowLoginAttempt(user, s.lockout, now); !decision.Allowed {
		s.recordLoginFailure(ctx, user, lc, decision.Reason)
		if decision.Reason == policy.ReasonLocked || decision.Reason == policy.ReasonTooManyFailures {
			return failedResult(models.NewLockedError(decision.RetryAfter)), nil
		}
		return failedResult(invalidCredentials()), nil
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		if err := s.persistFailedAttempt(ctx, user, lc, "wrong_password"); err != nil {
			return nil, err
		}
		return failedResult(invalidCredentials()), nil
	}

	recent, err := s.sessions.ListRecentByUser(ctx, user.ID, riskHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load session history: %w", err)
	}
	assessment := s.analyzer.Analyze(user, lc, recent)

	requirement := mfa.Requirement(user, true, lc.MFACode)
	usedBackupCode := false
	if requirement.Required {
		if !requirement.CodeSubmitted {
			// Password checked out but a second factor is outstanding. Not a
			// failure; the counter stays put.
			return &models.AuthResult{
				Status: models.AuthMFARequired,
				Risk:   assessment,
			}, nil
		}

		verification, err := s.mfaCheck.VerifyCode(ctx, user, lc.MFACode)
		if err != nil {
			return nil, fmt.Errorf("failed to verify MFA code: %w", err)
		}
		if !verification.Valid {
			// A wrong second factor counts toward lockout like a wrong
			// password; otherwise MFA would shield brute-forcing.
			if err := s.persistFailedAttempt(ctx, user, lc, "invalid_mfa_code"); err != nil {
				return nil, err
			}
			return failedResult(models.NewAuthError(models.KindMFAVerificationFailed, "invalid verification code")), nil
		}
		usedBackupCode = verification.UsedBackupCode
	}

	updated, err := applyUserDelta(ctx, s.users, user, func(u *models.User) models.UserSecurityDelta {
		return policy.SuccessfulLoginDelta(u, now)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist successful login: %w", err)
	}

	decision := policy.ShouldCreateSession(assessment, lc.Remember, s.sessionPol)
	if !decision.Create {
		s.recordLoginFailure(ctx, updated, lc, "risk_ceiling")
		s.logger.Warn("login blocked by risk ceiling",
			slog.String("user_id", updated.ID),
			slog.Int("risk_score", assessment.Score))
		return failedResult(invalidCredentials()), nil
	}

	session, signedToken, err := s.createSession(ctx, updated, lc, now, decision.Duration)
	if err != nil {
		return nil, err
	}

	s.recordLoginSuccess(ctx, updated, lc, assessment, usedBackupCode)

	if assessment.Has(models.RiskFlagNewDevice) && s.alerts != nil {
		if err := s.alerts.SendLoginAlert(ctx, updated.Email, lc.IPAddress, lc.UserAgent, now); err != nil {
			s.logger.Warn("failed to send login alert",
				slog.String("user_id", updated.ID),
				slog.Any("error", err))
		}
	}

	return &models.AuthResult{
		Status:                         models.AuthSuccess,
		Session:                        session,
		SignedToken:                    signedToken,
		User:                           updated,
		Risk:                           assessment,
		ForcePasswordReset:             updated.ForcePasswordReset,
		UsedBackupCode:                 usedBackupCode,
		RequiresAdditionalVerification: decision.RequiresAdditionalVerification,
	}, nil
}

// createSession mints the opaque token and the signed claim token, then
// inserts the session. A token collision in the store regenerates and
// retries.
func (s *AuthService) createSession(ctx context.Context, user *models.User, lc models.LoginContext, now time.Time, duration time.Duration) (*models.Session, string, error) {
	signedToken, err := s.tokens.Issue(user, duration)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue signed token: %w", err)
	}

	for attempt := 0; attempt < tokenCollisionRetries; attempt++ {
		token, err := auth.GenerateSessionToken()
		if err != nil {
			return nil, "", err
		}

		session, err := s.sessions.Create(ctx, &models.Session{
			UserID:      user.ID,
			Token:       token,
			SignedToken: &signedToken,
			CreatedAt:   now,
			ExpiresAt:   now.Add(duration),
			IPAddress:   lc.IPAddress,
			UserAgent:   lc.UserAgent,
		})
		if err != nil {
			if errors.Is(err, models.ErrConflict) {
				continue
			}
			return nil, "", fmt.Errorf("failed to create session: %w", err)
		}
		return session, signedToken, nil
	}

	return nil, "", fmt.Errorf("failed to create session: token collisions exhausted retries")
}

// persistFailedAttempt applies the failed-login delta and records the
// failure, emitting a lockout event when this attempt tripped the lock.
func (s *AuthService) persistFailedAttempt(ctx context.Context, user *models.User, lc models.LoginContext, reason string) error {
	now := s.now()
	updated, err := applyUserDelta(ctx, s.users, user, func(u *models.User) models.UserSecurityDelta {
		return policy.FailedLoginDelta(u, s.lockout, now)
	})
	if err != nil {
		return fmt.Errorf("failed to persist login failure: %w", err)
	}

	s.recordLoginFailure(ctx, updated, lc, reason)

	if updated.Locked(now) && !user.Locked(now) {
		s.auditLog.LogAuthAttempt(logger.AuditEvent{
			EventType: models.AuditEventLockout,
			UserID:    updated.ID,
			IPAddress: lc.IPAddress,
			Success:   false,
		})
		_ = s.audit.RecordAuthEvent(ctx, models.AuditEventLockout, &updated.ID, lc, false, policy.ReasonTooManyFailures)
	}

	return nil
}

func (s *AuthService) recordLoginFailure(ctx context.Context, user *models.User, lc models.LoginContext, reason string) {
	event := logger.AuditEvent{
		EventType:     models.AuditEventLoginFail,
		IPAddress:     lc.IPAddress,
		UserAgent:     lc.UserAgent,
		Success:       false,
		FailureReason: reason,
	}
	var userID *string
	if user != nil {
		event.UserID = user.ID
		userID = &user.ID
	}
	s.auditLog.LogAuthAttempt(event)
	_ = s.audit.RecordAuthEvent(ctx, models.AuditEventLoginFail, userID, lc, false, reason)
}

func (s *AuthService) recordLoginSuccess(ctx context.Context, user *models.User, lc models.LoginContext, assessment models.RiskAssessment, usedBackupCode bool) {
	metadata := map[string]string{
		"risk_score": fmt.Sprintf("%d", assessment.Score),
	}
	if len(assessment.Flags) > 0 {
		metadata["risk_flags"] = strings.Join(assessment.Flags, ",")
	}
	if usedBackupCode {
		metadata["used_backup_code"] = "true"
	}

	s.auditLog.LogAuthAttempt(logger.AuditEvent{
		EventType: models.AuditEventLogin,
		UserID:    user.ID,
		IPAddress: lc.IPAddress,
		UserAgent: lc.UserAgent,
		Success:   true,
		Metadata:  metadata,
	})
	_ = s.audit.RecordAuthEvent(ctx, models.AuditEventLogin, &user.ID, lc, true, "")
}

func failedResult(failure *models.AuthError) *models.AuthResult {
	return &models.AuthResult{Status: models.AuthFailed, Failure: failure}
}

func invalidCredentials() *models.AuthError {
	return models.NewAuthError(models.KindAuthenticationFailed, "invalid credentials")
}
