package services

import (
	"context"
	"log/slog"

	"github.com/silasmoran/bastion/internal/models"
)

// AuditLogRepository defines the interface for audit log persistence
type AuditLogRepository interface {
	Create(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.AuditLog, error)
}

// AuditService persists the security audit trail. Callers treat persistence
// as best-effort: Record returns the error for logging, but authentication
// outcomes never depend on it.
type AuditService struct {
	repo   AuditLogRepository
	logger *slog.Logger
}

func NewAuditService(repo AuditLogRepository, logger *slog.Logger) *AuditService {
	return &AuditService{repo: repo, logger: logger}
}

// Record writes one audit entry.
func (s *AuditService) Record(ctx context.Context, entry *models.AuditLog) error {
	if _, err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error("failed to persist audit entry",
			slog.String("event_type", entry.EventType),
			slog.Any("error", err))
		return err
	}
	return nil
}

// RecordAuthEvent is a convenience wrapper for login-flow events.
func (s *AuditService) RecordAuthEvent(ctx context.Context, eventType string, userID *string, lc models.LoginContext, success bool, failureReason string) error {
	entry := &models.AuditLog{
		EventType: eventType,
		UserID:    userID,
		Success:   success,
	}
	if lc.IPAddress != "" {
		entry.IPAddress = &lc.IPAddress
	}
	if lc.UserAgent != "" {
		entry.UserAgent = &lc.UserAgent
	}
	if failureReason != "" {
		entry.FailureReason = &failureReason
	}

	return s.Record(ctx, entry)
}

// History returns a user's audit entries, newest first.
func (s *AuditService) History(ctx context.Context, userID string, limit, offset int) ([]*models.AuditLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}
