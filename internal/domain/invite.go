package domain

import "time"

// Invite is keyed by email: re-inviting the same address overwrites the
// row, which invalidates the previous token as a side effect.
type Invite struct {
	Email     string     `json:"email" dynamodbav:"email"`
	Token     string     `json:"-" dynamodbav:"token"`
	InvitedBy string     `json:"invited_by" dynamodbav:"invited_by"`
	Role      string     `json:"role" dynamodbav:"role"`
	Desc      string     `json:"desc,omitempty" dynamodbav:"desc"`
	Used      bool       `json:"used" dynamodbav:"used"`
	UsedAt    *time.Time `json:"used_at,omitempty" dynamodbav:"used_at"`
	ExpiresAt int64      `json:"expires_at" dynamodbav:"expires_at"` // Unix seconds
	CreatedAt time.Time  `json:"created" dynamodbav:"created_at"`
}

// Redeemable reports whether the invite can still be accepted.
func (i *Invite) Redeemable(now time.Time) bool {
	return !i.Used && i.ExpiresAt > now.Unix()
}
