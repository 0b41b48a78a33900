package domain

import "time"

// AuthSession is a short-lived verified-intent record: proof that an email
// passed OTP verification for one intent. It is distinct from the login
// session; it only authorizes the single follow-up step (create account,
// change password) and is deleted when that step completes.
type AuthSession struct {
	SessionID string    `json:"id" dynamodbav:"session_id"`
	Email     string    `json:"email" dynamodbav:"email"`
	Intent    string    `json:"intent" dynamodbav:"intent"`
	ExpiresAt int64     `json:"expires_at" dynamodbav:"expires_at"` // Unix seconds, DynamoDB TTL attribute
	CreatedAt time.Time `json:"created" dynamodbav:"created_at,unixtime"`
}

// Active reports whether the verified intent can still be consumed.
func (s *AuthSession) Active(now time.Time) bool {
	return s.ExpiresAt > now.Unix()
}

// LoginSession is the server-side row behind the login cookie. The cookie
// carries only a signed session ID; this row is the source of truth, so
// disabling it revokes the cookie immediately.
type LoginSession struct {
	SessionID string    `json:"id" dynamodbav:"session_id"`
	UserID    string    `json:"user_id" dynamodbav:"user_id"`
	Email     string    `json:"email" dynamodbav:"email"`
	Enable    bool      `json:"enable" dynamodbav:"enable"`
	ExpiresAt int64     `json:"expires_at" dynamodbav:"expires_at"` // Unix seconds, DynamoDB TTL attribute
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
	User      *User     `json:"user,omitempty" dynamodbav:"-"`
}

// Active reports whether the login session is usable.
func (s *LoginSession) Active(now time.Time) bool {
	return s.Enable && s.ExpiresAt > now.Unix()
}
