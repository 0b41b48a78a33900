// Package session manages the login cookie. The cookie carries only a
// signed session ID; the login_sessions row it points at is authoritative,
// so revocation is a row update rather than a secret rotation.
package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-bookstore-admin/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

// Manager signs, reads and clears the login cookie.
type Manager struct {
	cookieName string
	secret     []byte
	ttl        time.Duration
	secure     bool
}

func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		cookieName: cfg.SessionCookieName,
		secret:     []byte(cfg.SessionSecret),
		ttl:        time.Duration(cfg.SessionTTLDays) * 24 * time.Hour,
		secure:     cfg.IsProduction(),
	}
}

type cookieClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// TTL is the cookie and session-row lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue signs sessionID into an HttpOnly cookie on w.
func (m *Manager) Issue(w http.ResponseWriter, sessionID string) error {
	now := time.Now()
	claims := cookieClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Read returns the session ID carried by the request cookie. A missing,
// malformed, expired or unverifiable cookie reads as logged out, never as
// an error, so a garbage cookie behaves exactly like no cookie at all.
func (m *Manager) Read(r *http.Request) (string, bool) {
	c, err := r.Cookie(m.cookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	var claims cookieClaims
	token, err := jwt.ParseWithClaims(c.Value, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid || claims.SessionID == "" {
		return "", false
	}
	return claims.SessionID, true
}

// Clear expires the cookie on w.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
