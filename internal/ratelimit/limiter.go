// Package ratelimit bounds abuse per (action, identifier, IP) key using
// fixed, non-overlapping windows: the first attempt for a key opens a
// window, every attempt inside it counts against the budget, and the
// counter resets fully when the window elapses.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-bookstore-admin/internal/domain"
)

// Action identifies a rate-limited operation.
type Action string

const (
	ActionSendOTP    Action = "SEND_OTP"
	ActionVerifyOTP  Action = "VERIFY_OTP"
	ActionLogin      Action = "LOGIN"
	ActionCheckEmail Action = "CHECK_EMAIL"
)

// Policy is the per-action attempt budget.
type Policy struct {
	MaxAttempts int
	Window      time.Duration
}

var policies = map[Action]Policy{
	ActionSendOTP:    {MaxAttempts: 3, Window: 10 * time.Minute},
	ActionVerifyOTP:  {MaxAttempts: 5, Window: 10 * time.Minute},
	ActionLogin:      {MaxAttempts: 5, Window: 15 * time.Minute},
	ActionCheckEmail: {MaxAttempts: 20, Window: 5 * time.Minute},
}

// Store is the counter backend. MemoryStore serves a single instance and
// tests; RedisStore shares windows across instances.
type Store interface {
	// Incr records one attempt under key, opening a fresh window when none
	// is active. It returns the attempt count within the current window and
	// the time remaining until the window elapses.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	// Reset forgets the key entirely.
	Reset(ctx context.Context, key string) error
}

// Limiter enforces the per-action policies against a Store.
type Limiter struct {
	store Store
}

func New(store Store) *Limiter {
	return &Limiter{store: store}
}

// Check counts one attempt for (action, identifier, ip). Within the budget
// it returns nil; once the budget is exhausted it returns a
// *domain.RateLimitError whose RetryAfter covers the rest of the window.
// Store failures propagate unwrapped.
func (l *Limiter) Check(ctx context.Context, action Action, identifier, ip string) error {
	p, ok := policies[action]
	if !ok {
		return fmt.Errorf("unknown rate limit action %q", action)
	}
	count, remaining, err := l.store.Incr(ctx, key(action, identifier, ip), p.Window)
	if err != nil {
		return err
	}
	if count > int64(p.MaxAttempts) {
		retry := int(remaining.Round(time.Second).Seconds())
		if retry < 1 {
			retry = 1
		}
		return &domain.RateLimitError{Action: string(action), RetryAfter: retry}
	}
	return nil
}

// Reset clears the counter for (action, identifier, ip). Called after a
// successful verification or login so earlier failed attempts stop
// counting against the key.
func (l *Limiter) Reset(ctx context.Context, action Action, identifier, ip string) error {
	return l.store.Reset(ctx, key(action, identifier, ip))
}

func key(action Action, identifier, ip string) string {
	return fmt.Sprintf("%s:%s:%s", action, identifier, ip)
}
