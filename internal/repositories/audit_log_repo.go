package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/silasmoran/bastion/internal/database"
	"github.com/silasmoran/bastion/internal/models"
)

// AuditLogRepository handles audit log data access
type AuditLogRepository struct {
	db *database.DB
}

func NewAuditLogRepository(db *database.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func scanAuditLogRow(row rowScanner) (*models.AuditLog, error) {
	var log models.AuditLog

	err := row.Scan(
		&log.ID, &log.EventType, &log.UserID, &log.Success,
		&log.FailureReason, &log.IPAddress, &log.UserAgent,
		&log.Metadata, &log.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &log, nil
}

// Create creates a new audit log entry
func (r *AuditLogRepository) Create(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error) {
	log.ID = uuid.New().String()

	query := `
		INSERT INTO audit_logs (id, event_type, user_id, success, failure_reason, ip_address, user_agent, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, event_type, user_id, success, failure_reason, ip_address, user_agent, metadata, created_at
	`

	result, err := scanAuditLogRow(r.db.Pool.QueryRow(ctx, query,
		log.ID, log.EventType, log.UserID, log.Success,
		log.FailureReason, log.IPAddress, log.UserAgent, log.Metadata,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create audit log: %w", err)
	}

	return result, nil
}

// ListByUser retrieves audit logs for a user, newest first.
func (r *AuditLogRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, event_type, user_id, success, failure_reason, ip_address, user_agent, metadata, created_at
		FROM audit_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*models.AuditLog, 0)
	for rows.Next() {
		log, err := scanAuditLogRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log rows: %w", err)
	}

	return logs, nil
}
