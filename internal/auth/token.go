package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/silasmoran/bastion/internal/models"
)

// Claims is the signed claim blob issued alongside a session.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies claim tokens with a single HS256 secret
// injected at startup. There is no fallback key: a missing secret is a fatal
// configuration error caught before this constructor runs.
type TokenManager struct {
	secret []byte
	issuer string
}

// NewTokenManager creates a new TokenManager.
func NewTokenManager(secret, issuer string) (*TokenManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: token signing secret is required", models.ErrConfiguration)
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer}, nil
}

// Issue creates a signed token for the user valid for the given duration.
func (tm *TokenManager) Issue(user *models.User, duration time.Duration) (string, error) {
	now := time.Now()

	claims := &Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   user.ID,
			Issuer:    tm.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Verify parses a token and returns its claims.
func (tm *TokenManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	return claims, nil
}
