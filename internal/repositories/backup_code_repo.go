package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/silasmoran/bastion/internal/database"
)

type BackupCodeRepository struct {
	db *database.DB
}

func NewBackupCodeRepository(db *database.DB) *BackupCodeRepository {
	return &BackupCodeRepository{db: db}
}

// Replace swaps the user's backup code set atomically: old codes (used or
// not) are dropped and the new hashes inserted in one transaction.
func (r *BackupCodeRepository) Replace(ctx context.Context, userID string, codeHashes []string) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM mfa_backup_codes WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("failed to clear backup codes: %w", err)
		}

		for _, hash := range codeHashes {
			_, err := tx.Exec(ctx,
				`INSERT INTO mfa_backup_codes (user_id, code_hash, created_at) VALUES ($1, $2, $3)`,
				userID, hash, time.Now(),
			)
			if err != nil {
				return fmt.Errorf("failed to insert backup code: %w", err)
			}
		}

		return nil
	})
}

// Consume marks one unused backup code as used. The condition on used_at
// makes the operation atomic per code: of two concurrent verifications of
// the same code, at most one sees RowsAffected > 0.
func (r *BackupCodeRepository) Consume(ctx context.Context, userID, codeHash string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE mfa_backup_codes SET used_at = $1
		 WHERE user_id = $2 AND code_hash = $3 AND used_at IS NULL`,
		time.Now(), userID, codeHash,
	)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return tag.RowsAffected() > 0, nil
}

// CountUnused reports how many recovery codes the user has left.
func (r *BackupCodeRepository) CountUnused(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM mfa_backup_codes WHERE user_id = $1 AND used_at IS NULL`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// DeleteByUserID removes all backup codes, used during MFA disable.
func (r *BackupCodeRepository) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM mfa_backup_codes WHERE user_id = $1`, userID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}
