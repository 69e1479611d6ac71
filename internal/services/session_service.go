package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/silasmoran/bastion/internal/models"
	"github.com/silasmoran/bastion/internal/policy"
	"github.com/silasmoran/bastion/pkg/logger"
)

// SessionRepository defines the interface for session persistence
type SessionRepository interface {
	Create(ctx context.Context, s *models.Session) (*models.Session, error)
	GetByToken(ctx context.Context, token string) (*models.Session, error)
	ListRecentByUser(ctx context.Context, userID string, limit int) ([]*models.Session, error)
	UpdateLastAccessed(ctx context.Context, sessionID string, t time.Time) error
	Invalidate(ctx context.Context, token string, at time.Time) (bool, error)
	InvalidateAllForUser(ctx context.Context, userID string, at time.Time) (int64, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionService validates, refreshes, and revokes sessions.
type SessionService struct {
	sessions SessionRepository
	policy   policy.SessionPolicy
	audit    *AuditService
	logger   *slog.Logger
	auditLog *logger.AuditLogger
	now      func() time.Time
}

func NewSessionService(
	sessions SessionRepository,
	pol policy.SessionPolicy,
	audit *AuditService,
	log *slog.Logger,
) *SessionService {
	return &SessionService{
		sessions: sessions,
		policy:   pol,
		audit:    audit,
		logger:   log,
		auditLog: logger.NewAuditLogger(log),
		now:      time.Now,
	}
}

// Validate resolves an opaque session token to its session if the session is
// still usable. Expired and revoked sessions fail with distinct errors;
// revocation wins when both apply. A successful validation refreshes
// last_accessed_at, throttled so hot sessions do not write on every request.
func (s *SessionService) Validate(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, models.ErrSessionNotFound
	}

	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrSessionNotFound
		}
		return nil, err
	}

	now := s.now()
	valid, reason := policy.SessionValidity(session, now)
	if !valid {
		switch reason {
		case policy.ValidityRevoked:
			return nil, models.ErrSessionRevoked
		default:
			return nil, models.ErrSessionExpired
		}
	}

	if policy.ShouldRefreshAccessTime(session, now, s.policy) {
		// Best-effort; a stale access time never fails the request.
		if err := s.sessions.UpdateLastAccessed(ctx, session.ID, now); err != nil {
			s.logger.Warn("failed to refresh session access time",
				slog.String("session_id", session.ID),
				slog.Any("error", err))
		} else {
			session.LastAccessedAt = &now
		}
	}

	return session, nil
}

// Logout revokes the session behind the token. The second logout of the same
// token reports ErrSessionNotFound: the conditional update in the store
// guarantees exactly one caller observes the revocation.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return models.ErrSessionNotFound
	}

	now := s.now()
	revoked, err := s.sessions.Invalidate(ctx, token, now)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrSessionNotFound
		}
		return err
	}
	if !revoked {
		return models.ErrSessionNotFound
	}

	s.auditLog.LogSessionEvent("session_revoked", "", logger.MaskToken(token), true)
	_ = s.audit.Record(ctx, &models.AuditLog{
		EventType: models.AuditEventLogout,
		Success:   true,
	})

	return nil
}

// LogoutAll revokes every active session of a user and returns the count.
func (s *SessionService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	now := s.now()
	count, err := s.sessions.InvalidateAllForUser(ctx, userID, now)
	if err != nil {
		return 0, err
	}

	s.auditLog.LogSessionEvent("all_sessions_revoked", userID, "", true)
	_ = s.audit.Record(ctx, &models.AuditLog{
		EventType: models.AuditEventLogout,
		UserID:    &userID,
		Success:   true,
		Metadata:  models.AuditMetadata{"revoked_count": count},
	})

	return count, nil
}

// ListRecent returns the user's most recent sessions, revoked ones included.
func (s *SessionService) ListRecent(ctx context.Context, userID string, limit int) ([]*models.Session, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.sessions.ListRecentByUser(ctx, userID, limit)
}

// CleanupExpired hard-deletes sessions that expired before the retention
// cutoff. Invalidation is logical; this sweep is the only physical delete.
func (s *SessionService) CleanupExpired(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention)

	deleted, err := s.sessions.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("session cleanup failed", slog.Any("error", err))
		return 0, err
	}

	if deleted > 0 {
		s.logger.Info("expired sessions deleted",
			slog.Int64("count", deleted),
			slog.Time("cutoff", cutoff))
	}

	return deleted, nil
}
