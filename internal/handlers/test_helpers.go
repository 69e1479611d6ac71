package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/silasmoran/bastion/internal/models"
	pkghttp "github.com/silasmoran/bastion/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithSessionContext attaches a resolved session to the request context, the
// way SessionAuth would for an authenticated request.
func WithSessionContext(req *http.Request, session *models.Session) *http.Request {
	ctx := context.WithValue(req.Context(), sessionContextKey, session)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockAuthenticator implements Authenticator for testing
type MockAuthenticator struct {
	AuthenticateFunc func(ctx context.Context, email, password string, lc models.LoginContext) (*models.AuthResult, error)
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, email, password string, lc models.LoginContext) (*models.AuthResult, error) {
	if m.AuthenticateFunc == nil {
		return &models.AuthResult{
			Status:  models.AuthFailed,
			Failure: models.NewAuthError(models.KindAuthenticationFailed, "invalid credentials"),
		}, nil
	}
	return m.AuthenticateFunc(ctx, email, password, lc)
}

// MockSessionManager implements SessionManager for testing
type MockSessionManager struct {
	ValidateFunc   func(ctx context.Context, token string) (*models.Session, error)
	LogoutFunc     func(ctx context.Context, token string) error
	LogoutAllFunc  func(ctx context.Context, userID string) (int64, error)
	ListRecentFunc func(ctx context.Context, userID string, limit int) ([]*models.Session, error)
}

func (m *MockSessionManager) Validate(ctx context.Context, token string) (*models.Session, error) {
	if m.ValidateFunc == nil {
		return nil, models.ErrSessionNotFound
	}
	return m.ValidateFunc(ctx, token)
}

func (m *MockSessionManager) Logout(ctx context.Context, token string) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, token)
}

func (m *MockSessionManager) LogoutAll(ctx context.Context, userID string) (int64, error) {
	if m.LogoutAllFunc == nil {
		return 0, nil
	}
	return m.LogoutAllFunc(ctx, userID)
}

func (m *MockSessionManager) ListRecent(ctx context.Context, userID string, limit int) ([]*models.Session, error) {
	if m.ListRecentFunc == nil {
		return []*models.Session{}, nil
	}
	return m.ListRecentFunc(ctx, userID, limit)
}

// MockMFAManager implements MFAManager for testing
type MockMFAManager struct {
	SetupFunc                func(ctx context.Context, userID string) (*models.MFASetup, error)
	EnableFunc               func(ctx context.Context, userID, code string) error
	DisableFunc              func(ctx context.Context, userID string) error
	VerifyUserCodeFunc       func(ctx context.Context, userID, code string) (models.MFAVerification, error)
	RemainingBackupCodesFunc func(ctx context.Context, userID string) (int, error)
}

func (m *MockMFAManager) Setup(ctx context.Context, userID string) (*models.MFASetup, error) {
	if m.SetupFunc == nil {
		return nil, models.ErrMFAAlreadySetUp
	}
	return m.SetupFunc(ctx, userID)
}

func (m *MockMFAManager) Enable(ctx context.Context, userID, code string) error {
	if m.EnableFunc == nil {
		return nil
	}
	return m.EnableFunc(ctx, userID, code)
}

func (m *MockMFAManager) Disable(ctx context.Context, userID string) error {
	if m.DisableFunc == nil {
		return nil
	}
	return m.DisableFunc(ctx, userID)
}

func (m *MockMFAManager) VerifyUserCode(ctx context.Context, userID, code string) (models.MFAVerification, error) {
	if m.VerifyUserCodeFunc == nil {
		return models.MFAVerification{}, models.ErrMFANotEnrolled
	}
	return m.VerifyUserCodeFunc(ctx, userID, code)
}

func (m *MockMFAManager) RemainingBackupCodes(ctx context.Context, userID string) (int, error) {
	if m.RemainingBackupCodesFunc == nil {
		return 0, nil
	}
	return m.RemainingBackupCodesFunc(ctx, userID)
}
