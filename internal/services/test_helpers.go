package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/silasmoran/bastion/internal/models"
)

// Mock repositories with configurable function fields. Unset fields return
// zero values or ErrNotFound.

type MockUserRepository struct {
	GetByIDFunc    func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc func(ctx context.Context, email string) (*models.User, error)
	CreateFunc     func(ctx context.Context, user *models.User) (*models.User, error)
	ApplyDeltaFunc func(ctx context.Context, userID string, version int64, delta models.UserSecurityDelta) (*models.User, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return user, nil
}

func (m *MockUserRepository) ApplyDelta(ctx context.Context, userID string, version int64, delta models.UserSecurityDelta) (*models.User, error) {
	if m.ApplyDeltaFunc != nil {
		return m.ApplyDeltaFunc(ctx, userID, version, delta)
	}
	return nil, models.ErrNotFound
}

type MockSessionRepository struct {
	CreateFunc               func(ctx context.Context, s *models.Session) (*models.Session, error)
	GetByTokenFunc           func(ctx context.Context, token string) (*models.Session, error)
	ListRecentByUserFunc     func(ctx context.Context, userID string, limit int) ([]*models.Session, error)
	UpdateLastAccessedFunc   func(ctx context.Context, sessionID string, t time.Time) error
	InvalidateFunc           func(ctx context.Context, token string, at time.Time) (bool, error)
	InvalidateAllForUserFunc func(ctx context.Context, userID string, at time.Time) (int64, error)
	DeleteExpiredBeforeFunc  func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *MockSessionRepository) Create(ctx context.Context, s *models.Session) (*models.Session, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, s)
	}
	s.ID = "session-1"
	return s, nil
}

func (m *MockSessionRepository) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	if m.GetByTokenFunc != nil {
		return m.GetByTokenFunc(ctx, token)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionRepository) ListRecentByUser(ctx context.Context, userID string, limit int) ([]*models.Session, error) {
	if m.ListRecentByUserFunc != nil {
		return m.ListRecentByUserFunc(ctx, userID, limit)
	}
	return []*models.Session{}, nil
}

func (m *MockSessionRepository) UpdateLastAccessed(ctx context.Context, sessionID string, t time.Time) error {
	if m.UpdateLastAccessedFunc != nil {
		return m.UpdateLastAccessedFunc(ctx, sessionID, t)
	}
	return nil
}

func (m *MockSessionRepository) Invalidate(ctx context.Context, token string, at time.Time) (bool, error) {
	if m.InvalidateFunc != nil {
		return m.InvalidateFunc(ctx, token, at)
	}
	return false, nil
}

func (m *MockSessionRepository) InvalidateAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	if m.InvalidateAllForUserFunc != nil {
		return m.InvalidateAllForUserFunc(ctx, userID, at)
	}
	return 0, nil
}

func (m *MockSessionRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteExpiredBeforeFunc != nil {
		return m.DeleteExpiredBeforeFunc(ctx, cutoff)
	}
	return 0, nil
}

type MockBackupCodeRepository struct {
	ReplaceFunc        func(ctx context.Context, userID string, codeHashes []string) error
	ConsumeFunc        func(ctx context.Context, userID, codeHash string) (bool, error)
	CountUnusedFunc    func(ctx context.Context, userID string) (int, error)
	DeleteByUserIDFunc func(ctx context.Context, userID string) error
}

func (m *MockBackupCodeRepository) Replace(ctx context.Context, userID string, codeHashes []string) error {
	if m.ReplaceFunc != nil {
		return m.ReplaceFunc(ctx, userID, codeHashes)
	}
	return nil
}

func (m *MockBackupCodeRepository) Consume(ctx context.Context, userID, codeHash string) (bool, error) {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, userID, codeHash)
	}
	return false, nil
}

func (m *MockBackupCodeRepository) CountUnused(ctx context.Context, userID string) (int, error) {
	if m.CountUnusedFunc != nil {
		return m.CountUnusedFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockBackupCodeRepository) DeleteByUserID(ctx context.Context, userID string) error {
	if m.DeleteByUserIDFunc != nil {
		return m.DeleteByUserIDFunc(ctx, userID)
	}
	return nil
}

type MockAuditLogRepository struct {
	mu      sync.Mutex
	Entries []*models.AuditLog

	CreateFunc     func(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error)
	ListByUserFunc func(ctx context.Context, userID string, limit, offset int) ([]*models.AuditLog, error)
}

func (m *MockAuditLogRepository) Create(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, log)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, log)
	return log, nil
}

func (m *MockAuditLogRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.AuditLog, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID, limit, offset)
	}
	return []*models.AuditLog{}, nil
}

// EventTypes returns the recorded event types in order.
func (m *MockAuditLogRepository) EventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		types[i] = e.EventType
	}
	return types
}

type MockMFAVerifier struct {
	VerifyCodeFunc func(ctx context.Context, user *models.User, code string) (models.MFAVerification, error)
}

func (m *MockMFAVerifier) VerifyCode(ctx context.Context, user *models.User, code string) (models.MFAVerification, error) {
	if m.VerifyCodeFunc != nil {
		return m.VerifyCodeFunc(ctx, user, code)
	}
	return models.MFAVerification{}, nil
}

type MockLoginAlertSender struct {
	mu    sync.Mutex
	Sent  []string
	Err   error
}

func (m *MockLoginAlertSender) SendLoginAlert(ctx context.Context, email, ipAddress, userAgent string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, email)
	return nil
}

// NewTestUser creates a user for testing
func NewTestUser(id, email, name string) *models.User {
	now := time.Now()
	return &models.User{
		ID:        id,
		Email:     email,
		Name:      name,
		Status:    models.StatusActive,
		Role:      "user",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestUserWithPassword creates a user with hashed password
func NewTestUserWithPassword(id, email, name, passwordHash string) *models.User {
	user := NewTestUser(id, email, name)
	user.PasswordHash = passwordHash
	return user
}

// NewTestUserLocked creates a locked user
func NewTestUserLocked(id, email, name string) *models.User {
	user := NewTestUser(id, email, name)
	lockedUntil := time.Now().Add(30 * time.Minute)
	user.LockedUntil = &lockedUntil
	user.FailedLoginCount = 5
	return user
}

// testLogger returns a logger that discards output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubUserRepo wraps a single user in an in-memory repository that applies
// deltas and bumps the version the way the real store does. Tests that care
// about persisted state read repo.user afterwards.
type stubUserRepo struct {
	mu   sync.Mutex
	user *models.User
}

func newStubUserRepo(u *models.User) *stubUserRepo {
	return &stubUserRepo{user: u}
}

func (r *stubUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.user == nil || r.user.ID != id {
		return nil, models.ErrNotFound
	}
	u := *r.user
	return &u, nil
}

func (r *stubUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.user == nil || r.user.Email != email {
		return nil, models.ErrNotFound
	}
	u := *r.user
	return &u, nil
}

func (r *stubUserRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.user = user
	return user, nil
}

func (r *stubUserRepo) ApplyDelta(ctx context.Context, userID string, version int64, delta models.UserSecurityDelta) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.user == nil || r.user.ID != userID {
		return nil, models.ErrNotFound
	}
	if r.user.Version != version {
		return nil, models.ErrVersionConflict
	}

	u := *r.user
	if delta.FailedLoginCount != nil {
		u.FailedLoginCount = *delta.FailedLoginCount
	}
	if delta.LockedUntil != nil {
		u.LockedUntil = delta.LockedUntil
	} else if delta.ClearLockedUntil {
		u.LockedUntil = nil
	}
	if delta.LastLoginAt != nil {
		u.LastLoginAt = delta.LastLoginAt
	}
	if delta.MFAEnabled != nil {
		u.MFAEnabled = *delta.MFAEnabled
	}
	if delta.MFASecretEncrypted != nil {
		u.MFASecretEncrypted = delta.MFASecretEncrypted
	}
	if delta.MFASecretNonce != nil {
		u.MFASecretNonce = delta.MFASecretNonce
	}
	if delta.ClearMFASecret {
		u.MFASecretEncrypted = nil
		u.MFASecretNonce = nil
	}
	if delta.PasswordHash != nil {
		u.PasswordHash = *delta.PasswordHash
	}
	if delta.PasswordCreatedAt != nil {
		u.PasswordCreatedAt = *delta.PasswordCreatedAt
	}
	if delta.ForcePasswordReset != nil {
		u.ForcePasswordReset = *delta.ForcePasswordReset
	}
	u.Version++
	r.user = &u

	out := u
	return &out, nil
}
