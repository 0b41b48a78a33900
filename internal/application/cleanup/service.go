// Package cleanup holds the age-based sweep jobs. Expiry is otherwise
// enforced lazily at read time; these jobs only bound table growth. They
// are triggered from the admin API by an external scheduler; there is no
// in-process cron.
package cleanup

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Default retention windows, in days.
const (
	DefaultUsedOtpRetention     = 7
	DefaultAuthSessionRetention = 30
)

type OtpStore interface {
	DeleteExpired(ctx context.Context) (int, error)
	DeleteUsedOlderThan(ctx context.Context, age time.Duration) (int, error)
}

type AuthSessionStore interface {
	DeleteExpired(ctx context.Context) (int, error)
	DeleteOlderThan(ctx context.Context, age time.Duration) (int, error)
}

type LoginSessionStore interface {
	DeleteExpired(ctx context.Context) (int, error)
}

// JobResult reports one job's outcome. Err is a string so the result
// serializes cleanly in the admin response.
type JobResult struct {
	Job     string `json:"job"`
	Deleted int    `json:"deleted"`
	Err     string `json:"error,omitempty"`
}

type Service interface {
	ExpiredOtps(ctx context.Context) (int, error)
	OldUsedOtps(ctx context.Context, ageDays int) (int, error)
	ExpiredAuthSessions(ctx context.Context) (int, error)
	OldAuthSessions(ctx context.Context, ageDays int) (int, error)
	ExpiredLoginSessions(ctx context.Context) (int, error)
	RunAll(ctx context.Context) []JobResult
}

type service struct {
	otps          OtpStore
	authSessions  AuthSessionStore
	loginSessions LoginSessionStore
}

func NewService(otps OtpStore, authSessions AuthSessionStore, loginSessions LoginSessionStore) Service {
	return &service{otps: otps, authSessions: authSessions, loginSessions: loginSessions}
}

func (s *service) ExpiredOtps(ctx context.Context) (int, error) {
	return s.otps.DeleteExpired(ctx)
}

func (s *service) OldUsedOtps(ctx context.Context, ageDays int) (int, error) {
	if ageDays <= 0 {
		ageDays = DefaultUsedOtpRetention
	}
	return s.otps.DeleteUsedOlderThan(ctx, time.Duration(ageDays)*24*time.Hour)
}

func (s *service) ExpiredAuthSessions(ctx context.Context) (int, error) {
	return s.authSessions.DeleteExpired(ctx)
}

func (s *service) OldAuthSessions(ctx context.Context, ageDays int) (int, error) {
	if ageDays <= 0 {
		ageDays = DefaultAuthSessionRetention
	}
	return s.authSessions.DeleteOlderThan(ctx, time.Duration(ageDays)*24*time.Hour)
}

func (s *service) ExpiredLoginSessions(ctx context.Context) (int, error) {
	return s.loginSessions.DeleteExpired(ctx)
}

// RunAll runs every job concurrently and reports each outcome. A failing
// job does not stop the others.
func (s *service) RunAll(ctx context.Context) []JobResult {
	jobs := []struct {
		name string
		run  func(context.Context) (int, error)
	}{
		{"expired_otps", s.ExpiredOtps},
		{"old_used_otps", func(ctx context.Context) (int, error) { return s.OldUsedOtps(ctx, 0) }},
		{"expired_auth_sessions", s.ExpiredAuthSessions},
		{"old_auth_sessions", func(ctx context.Context) (int, error) { return s.OldAuthSessions(ctx, 0) }},
		{"expired_login_sessions", s.ExpiredLoginSessions},
	}

	results := make([]JobResult, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, name string, run func(context.Context) (int, error)) {
			defer wg.Done()
			n, err := run(ctx)
			results[i] = JobResult{Job: name, Deleted: n}
			if err != nil {
				results[i].Err = err.Error()
				slog.Error("cleanup job failed", "job", name, "err", err)
			}
		}(i, job.name, job.run)
	}
	wg.Wait()
	return results
}
