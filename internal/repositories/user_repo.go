package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/silasmoran/bastion/internal/database"
	"github.com/silasmoran/bastion/internal/models"
)

const userColumns = `id, email, name, password_hash, role, status,
	failed_login_count, locked_until, last_login_at,
	mfa_enabled, mfa_secret_encrypted, mfa_secret_nonce,
	password_created_at, force_password_reset, version, created_at, updated_at`

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var lockedUntil, lastLoginAt *time.Time

	err := scanner.Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash,
		&user.Role, &user.Status,
		&user.FailedLoginCount, &lockedUntil, &lastLoginAt,
		&user.MFAEnabled, &user.MFASecretEncrypted, &user.MFASecretNonce,
		&user.PasswordCreatedAt, &user.ForcePasswordReset, &user.Version,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	user.LockedUntil = lockedUntil
	user.LastLoginAt = lastLoginAt

	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.PasswordCreatedAt.IsZero() {
		user.PasswordCreatedAt = now
	}
	if user.Role == "" {
		user.Role = "user"
	}
	if user.Status == "" {
		user.Status = models.StatusActive
	}

	query := `
		INSERT INTO users (id, email, name, password_hash, role, status, password_created_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + userColumns

	return scanUserRow(r.db.Pool.QueryRow(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash,
		user.Role, user.Status, user.PasswordCreatedAt,
		user.CreatedAt, user.UpdatedAt,
	))
}

// ApplyDelta applies a security-state delta under an optimistic version
// check: the UPDATE only matches when the row still carries the version the
// caller read. A miss returns ErrVersionConflict (row changed underneath) or
// ErrNotFound (row gone), letting the caller re-read and retry. This closes
// the read-modify-write window between the lockout check and the persisted
// counter.
func (r *UserRepository) ApplyDelta(ctx context.Context, userID string, version int64, delta models.UserSecurityDelta) (*models.User, error) {
	if delta.Empty() {
		return r.GetByID(ctx, userID)
	}

	sets := []string{"version = version + 1", "updated_at = $1"}
	args := []interface{}{time.Now()}

	add := func(expr string, val interface{}) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if delta.FailedLoginCount != nil {
		add("failed_login_count = $%d", *delta.FailedLoginCount)
	}
	if delta.LockedUntil != nil {
		add("locked_until = $%d", *delta.LockedUntil)
	} else if delta.ClearLockedUntil {
		sets = append(sets, "locked_until = NULL")
	}
	if delta.LastLoginAt != nil {
		add("last_login_at = $%d", *delta.LastLoginAt)
	}
	if delta.MFAEnabled != nil {
		add("mfa_enabled = $%d", *delta.MFAEnabled)
	}
	if delta.MFASecretEncrypted != nil {
		add("mfa_secret_encrypted = $%d", delta.MFASecretEncrypted)
	}
	if delta.MFASecretNonce != nil {
		add("mfa_secret_nonce = $%d", delta.MFASecretNonce)
	}
	if delta.ClearMFASecret {
		sets = append(sets, "mfa_secret_encrypted = NULL", "mfa_secret_nonce = NULL")
	}
	if delta.PasswordHash != nil {
		add("password_hash = $%d", *delta.PasswordHash)
	}
	if delta.PasswordCreatedAt != nil {
		add("password_created_at = $%d", *delta.PasswordCreatedAt)
	}
	if delta.ForcePasswordReset != nil {
		add("force_password_reset = $%d", *delta.ForcePasswordReset)
	}

	args = append(args, userID)
	idArg := len(args)
	args = append(args, version)
	versionArg := len(args)

	query := fmt.Sprintf(
		"UPDATE users SET %s WHERE id = $%d AND version = $%d RETURNING %s",
		strings.Join(sets, ", "), idArg, versionArg, userColumns,
	)

	user, err := scanUserRow(r.db.Pool.QueryRow(ctx, query, args...))
	if err == nil {
		return user, nil
	}
	if err != models.ErrNotFound {
		return nil, err
	}

	// No row matched: distinguish a stale version from a deleted user.
	var exists bool
	checkErr := r.db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if checkErr != nil {
		return nil, database.MapPostgresError(checkErr)
	}
	if exists {
		return nil, models.ErrVersionConflict
	}
	return nil, models.ErrNotFound
}

// Delete removes a user row outright. Only used by account deletion flows;
// authentication never hard-deletes.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}
