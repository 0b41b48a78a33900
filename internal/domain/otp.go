package domain

import "time"

// Intent scopes an OTP or verified-intent session to the action it unlocks.
// Lookup and invalidation keys are always (email, intent). Only register,
// invited and reset_password have a completing step in this service; login
// and email_change sessions that nothing consumes simply expire.
const (
	IntentRegister      = "register"
	IntentLogin         = "login"
	IntentResetPassword = "reset_password"
	IntentEmailChange   = "email_change"
	IntentInvited       = "invited"
)

// Intents lists every valid intent value.
var Intents = []string{
	IntentRegister,
	IntentLogin,
	IntentResetPassword,
	IntentEmailChange,
	IntentInvited,
}

// OneTimePasscode is a hashed email-proof code. At most one unused,
// unexpired row may exist per (email, intent); OtpRepo enforces this by
// marking the prior unused row used in the same transaction that inserts a
// new one, gated on a per-key marker so concurrent writers serialize.
type OneTimePasscode struct {
	OtpID     string    `json:"id" dynamodbav:"otp_id"`
	Email     string    `json:"email" dynamodbav:"email"`
	Intent    string    `json:"intent" dynamodbav:"intent"`
	CodeHash  string    `json:"-" dynamodbav:"code_hash"`
	Used      bool      `json:"used" dynamodbav:"used"`
	ExpiresAt int64     `json:"expires_at" dynamodbav:"expires_at"` // Unix seconds, also the DynamoDB TTL attribute
	CreatedAt time.Time `json:"created" dynamodbav:"created_at,unixtime"`
}

// Active reports whether the passcode can still be verified.
func (o *OneTimePasscode) Active(now time.Time) bool {
	return !o.Used && o.ExpiresAt > now.Unix()
}
