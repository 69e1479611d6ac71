package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silasmoran/bastion/internal/models"
)

func TestNewTokenManager_RequiresSecret(t *testing.T) {
	tm, err := NewTokenManager("", "bastion")
	assert.Nil(t, tm)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestTokenManager_IssueAndVerify(t *testing.T) {
	tm, err := NewTokenManager("test-signing-secret-0123456789abcdef", "bastion")
	require.NoError(t, err)

	user := &models.User{ID: "user123", Role: "admin"}

	token, err := tm.Issue(user, 1*time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tm.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user123", claims.Subject)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "bastion", claims.Issuer)
	assert.NotEmpty(t, claims.ID, "every token carries a unique jti")

	expiry := claims.ExpiresAt.Time
	assert.WithinDuration(t, time.Now().Add(1*time.Hour), expiry, 5*time.Second)
}

func TestTokenManager_Verify_WrongSecret(t *testing.T) {
	tm1, err := NewTokenManager("test-signing-secret-0123456789abcdef", "bastion")
	require.NoError(t, err)
	tm2, err := NewTokenManager("another-signing-secret-fedcba987654", "bastion")
	require.NoError(t, err)

	user := &models.User{ID: "user123", Role: "user"}
	token, err := tm1.Issue(user, 1*time.Hour)
	require.NoError(t, err)

	_, err = tm2.Verify(token)
	assert.Error(t, err)
}

func TestTokenManager_Verify_Expired(t *testing.T) {
	tm, err := NewTokenManager("test-signing-secret-0123456789abcdef", "bastion")
	require.NoError(t, err)

	user := &models.User{ID: "user123", Role: "user"}
	token, err := tm.Issue(user, -1*time.Minute)
	require.NoError(t, err)

	_, err = tm.Verify(token)
	assert.Error(t, err)
}

func TestTokenManager_Verify_RejectsUnsignedToken(t *testing.T) {
	tm, err := NewTokenManager("test-signing-secret-0123456789abcdef", "bastion")
	require.NoError(t, err)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user123"},
	})
	tokenString, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = tm.Verify(tokenString)
	assert.Error(t, err)
}

func TestTokenManager_DistinctTokensPerIssue(t *testing.T) {
	tm, err := NewTokenManager("test-signing-secret-0123456789abcdef", "bastion")
	require.NoError(t, err)

	user := &models.User{ID: "user123", Role: "user"}
	t1, err := tm.Issue(user, 1*time.Hour)
	require.NoError(t, err)
	t2, err := tm.Issue(user, 1*time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, t1, t2)
}
