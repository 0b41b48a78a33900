package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-bookstore-admin/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager(&config.Config{
		SessionCookieName: "bk_session",
		SessionSecret:     "test-secret",
		SessionTTLDays:    7,
		AppEnv:            "development",
	})
}

func requestWithCookie(t *testing.T, issue func(w http.ResponseWriter)) *http.Request {
	t.Helper()
	rec := httptest.NewRecorder()
	issue(rec)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestIssueRead_RoundTrip(t *testing.T) {
	m := newTestManager()
	req := requestWithCookie(t, func(w http.ResponseWriter) {
		require.NoError(t, m.Issue(w, "sess-123"))
	})

	sid, ok := m.Read(req)
	require.True(t, ok)
	assert.Equal(t, "sess-123", sid)
}

func TestIssue_CookieAttributes(t *testing.T) {
	m := newTestManager()
	rec := httptest.NewRecorder()
	require.NoError(t, m.Issue(rec, "sess-123"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "bk_session", c.Name)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), c.MaxAge)
}

func TestRead_NoCookie(t *testing.T) {
	m := newTestManager()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	sid, ok := m.Read(req)
	assert.False(t, ok)
	assert.Empty(t, sid)
}

func TestRead_GarbageCookie(t *testing.T) {
	m := newTestManager()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "bk_session", Value: "not-a-jwt"})

	_, ok := m.Read(req)
	assert.False(t, ok)
}

func TestRead_WrongSecret(t *testing.T) {
	other := NewManager(&config.Config{
		SessionCookieName: "bk_session",
		SessionSecret:     "different-secret",
		SessionTTLDays:    7,
	})
	req := requestWithCookie(t, func(w http.ResponseWriter) {
		require.NoError(t, other.Issue(w, "sess-123"))
	})

	_, ok := newTestManager().Read(req)
	assert.False(t, ok)
}

func TestRead_ExpiredToken(t *testing.T) {
	m := newTestManager()
	claims := cookieClaims{
		SessionID: "sess-123",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "bk_session", Value: signed})

	_, ok := m.Read(req)
	assert.False(t, ok)
}

func TestRead_UnsignedAlgorithmRejected(t *testing.T) {
	m := newTestManager()
	claims := cookieClaims{SessionID: "sess-123"}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "bk_session", Value: unsigned})

	_, ok := m.Read(req)
	assert.False(t, ok)
}

func TestClear_ExpiresCookie(t *testing.T) {
	m := newTestManager()
	rec := httptest.NewRecorder()
	m.Clear(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.Empty(t, cookies[0].Value)
}
