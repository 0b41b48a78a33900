package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-bookstore-admin/internal/domain"
	"github.com/go-bookstore-admin/internal/session"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	SessionID string
	User      *domain.User
}

// SessionStore is the slice of the login-session repository the middleware needs.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*domain.LoginSession, error)
}

// UserStore is the slice of the user repository the middleware needs.
type UserStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

// Auth returns middleware that resolves the login cookie to a live session
// row and its user. A malformed cookie is treated exactly like a missing
// one; a disabled or expired row is a 401 even when the cookie itself
// still verifies.
func Auth(mgr *session.Manager, sessions SessionStore, users UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid, ok := mgr.Read(r)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "session expired")
				return
			}
			sess, err := sessions.Get(r.Context(), sid)
			if err != nil || !sess.Active(time.Now()) {
				writeJSONError(w, http.StatusUnauthorized, "session expired")
				return
			}
			u, err := users.Get(r.Context(), sess.UserID)
			if err != nil || !u.Enable {
				writeJSONError(w, http.StatusUnauthorized, "session expired")
				return
			}
			ctx := context.WithValue(r.Context(), principalKey, &Principal{SessionID: sid, User: u})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext extracts the authenticated caller from the request context.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok
}
