package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/silasmoran/bastion/internal/models"
	pkghttp "github.com/silasmoran/bastion/pkg/http"
)

type contextKey string

const sessionContextKey contextKey = "session"

// SessionValidator resolves an opaque session token to its session.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*models.Session, error)
}

// SessionAuth authenticates requests by the opaque session token in the
// Authorization header and stores the resolved session in the request
// context. Expired and revoked sessions get distinct error codes; a token
// that resolves to nothing is indistinguishable from no token at all.
func SessionAuth(sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				pkghttp.WriteUnauthorized(w, "Missing session token")
				return
			}

			session, err := sessions.Validate(r.Context(), token)
			if err != nil {
				switch err {
				case models.ErrSessionExpired:
					pkghttp.WriteError(w, http.StatusUnauthorized, "session_expired", "Session has expired")
				case models.ErrSessionRevoked:
					pkghttp.WriteError(w, http.StatusUnauthorized, "session_revoked", "Session has been revoked")
				case models.ErrSessionNotFound:
					pkghttp.WriteUnauthorized(w, "Invalid session token")
				default:
					pkghttp.WriteInternalError(w, "Session validation failed")
				}
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the session attached by SessionAuth, or nil.
func SessionFromContext(r *http.Request) *models.Session {
	session, _ := r.Context().Value(sessionContextKey).(*models.Session)
	return session
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
