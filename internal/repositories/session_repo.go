package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/silasmoran/bastion/internal/database"
	"github.com/silasmoran/bastion/internal/models"
)

const sessionColumns = `id, user_id, session_token, signed_token,
	created_at, expires_at, last_accessed_at, revoked_at, ip_address, user_agent`

type SessionRepository struct {
	db *database.DB
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func scanSessionRow(scanner rowScanner) (*models.Session, error) {
	var s models.Session

	err := scanner.Scan(
		&s.ID, &s.UserID, &s.Token, &s.SignedToken,
		&s.CreatedAt, &s.ExpiresAt, &s.LastAccessedAt, &s.RevokedAt,
		&s.IPAddress, &s.UserAgent,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &s, nil
}

func scanSessionRows(rows pgx.Rows) ([]*models.Session, error) {
	defer rows.Close()

	sessions := make([]*models.Session, 0)

	for rows.Next() {
		s, err := scanSessionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}

	return sessions, nil
}

// Create inserts a session. A duplicate session_token surfaces as
// ErrConflict so the caller can regenerate the token.
func (r *SessionRepository) Create(ctx context.Context, s *models.Session) (*models.Session, error) {
	s.ID = uuid.New().String()

	query := `
		INSERT INTO sessions (id, user_id, session_token, signed_token, created_at, expires_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + sessionColumns

	return scanSessionRow(r.db.Pool.QueryRow(ctx, query,
		s.ID, s.UserID, s.Token, s.SignedToken,
		s.CreatedAt, s.ExpiresAt, s.IPAddress, s.UserAgent,
	))
}

func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE session_token = $1`
	return scanSessionRow(r.db.Pool.QueryRow(ctx, query, token))
}

// ListRecentByUser returns the user's most recent sessions, revoked ones
// included; the risk analyzer needs them.
func (r *SessionRepository) ListRecentByUser(ctx context.Context, userID string, limit int) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.db.Pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}

	return scanSessionRows(rows)
}

// UpdateLastAccessed refreshes last_accessed_at on an active session.
// Best-effort: a miss (revoked meanwhile) is not an error.
func (r *SessionRepository) UpdateLastAccessed(ctx context.Context, sessionID string, t time.Time) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE sessions SET last_accessed_at = $1 WHERE id = $2 AND revoked_at IS NULL`,
		t, sessionID,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// Invalidate marks a session revoked. The guard on revoked_at makes
// consumption exactly-once: the second invalidation of the same token
// reports false.
func (r *SessionRepository) Invalidate(ctx context.Context, token string, at time.Time) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE sessions SET revoked_at = $1 WHERE session_token = $2 AND revoked_at IS NULL`,
		at, token,
	)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return tag.RowsAffected() > 0, nil
}

// InvalidateAllForUser revokes every active session of a user and returns
// how many were affected.
func (r *SessionRepository) InvalidateAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE sessions SET revoked_at = $1 WHERE user_id = $2 AND revoked_at IS NULL`,
		at, userID,
	)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpiredBefore hard-deletes sessions whose expiry predates the cutoff.
// This is the bulk retention sweep; normal invalidation is logical only.
func (r *SessionRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
