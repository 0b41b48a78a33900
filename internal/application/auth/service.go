// Package auth implements the OTP flows: send, verify, register, login and
// password reset. Each (email, intent) pair moves through
// no-code -> code-pending -> verified -> completed, with rate limits on
// the send and verify transitions and a verified-intent session bridging
// verification and completion.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-bookstore-admin/internal/domain"
	"github.com/go-bookstore-admin/internal/pkg/id"
	"github.com/go-bookstore-admin/internal/pkg/otp"
	"github.com/go-bookstore-admin/internal/pkg/password"
	"github.com/go-bookstore-admin/internal/pkg/token"
	"github.com/go-bookstore-admin/internal/pkg/validate"
	"github.com/go-bookstore-admin/internal/ratelimit"
)

// authSessionTTL bounds how long a verified intent may wait for its
// completing step before the whole flow must restart.
const authSessionTTL = 15 * time.Minute

type OtpStore interface {
	CreateAndInvalidateOld(ctx context.Context, o *domain.OneTimePasscode) error
	GetActive(ctx context.Context, email, intent string) (*domain.OneTimePasscode, error)
	MarkUsed(ctx context.Context, otpID string) error
}

type AuthSessionStore interface {
	CreateAndReplace(ctx context.Context, s *domain.AuthSession) error
	GetActive(ctx context.Context, sessionID string) (*domain.AuthSession, error)
	Delete(ctx context.Context, sessionID string) error
}

type UserStore interface {
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetStaffByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type LoginSessionStore interface {
	Put(ctx context.Context, s *domain.LoginSession) error
	Get(ctx context.Context, sessionID string) (*domain.LoginSession, error)
	Disable(ctx context.Context, sessionID string) error
	DisableByUser(ctx context.Context, userID string) error
}

type InviteStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.Invite, error)
	FindValidByToken(ctx context.Context, token string) (*domain.Invite, error)
	MarkUsed(ctx context.Context, email string) error
}

type Mailer interface {
	SendEmail(to, subject, body string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// Limiter is the slice of ratelimit.Limiter the flows use.
type Limiter interface {
	Check(ctx context.Context, action ratelimit.Action, identifier, ip string) error
	Reset(ctx context.Context, action ratelimit.Action, identifier, ip string) error
}

type SendOtpRequest struct {
	Email   string `json:"email" validate:"required"`
	Intent  string `json:"intent" validate:"required"`
	Channel string `json:"channel"` // "email" (default) or "sms"
}

type VerifyOtpRequest struct {
	Email  string `json:"email" validate:"required"`
	Intent string `json:"intent" validate:"required"`
	Code   string `json:"code" validate:"required"`
}

// VerifyOtpResult hands the caller the verified-intent session it needs to
// complete the flow.
type VerifyOtpResult struct {
	AuthSessionID string `json:"auth_session_id"`
	ExpiresAt     int64  `json:"expires_at"`
}

type RegisterRequest struct {
	AuthSessionID string  `json:"auth_session_id" validate:"required"`
	Password      string  `json:"password" validate:"required"`
	FirstName     string  `json:"first_name" validate:"required"`
	LastName      string  `json:"last_name"`
	Phone         *string `json:"phone"`
	InviteToken   string  `json:"invite_token"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ResetPasswordRequest struct {
	AuthSessionID string `json:"auth_session_id" validate:"required"`
	NewPassword   string `json:"new_password" validate:"required"`
}

// LoginResult carries the minted login session. The transport layer turns
// SessionID into the signed cookie.
type LoginResult struct {
	SessionID string
	User      *domain.User
}

type Service interface {
	CheckEmail(ctx context.Context, email, ip string) (bool, error)
	SendOtp(ctx context.Context, req SendOtpRequest, ip string) error
	VerifyOtp(ctx context.Context, req VerifyOtpRequest, ip string) (*VerifyOtpResult, error)
	Register(ctx context.Context, req RegisterRequest) (*LoginResult, error)
	Login(ctx context.Context, req LoginRequest, ip string) (*LoginResult, error)
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
	Logout(ctx context.Context, sessionID string) error
	CurrentSession(ctx context.Context, sessionID string) (*domain.LoginSession, error)
}

// Deps collects everything the auth flows touch.
type Deps struct {
	OtpRepo          OtpStore
	AuthSessionRepo  AuthSessionStore
	UserRepo         UserStore
	LoginSessionRepo LoginSessionStore
	InviteRepo       InviteStore
	Mailer           Mailer
	SMSSender        SMSSender
	Limiter          Limiter
	OtpTTL           time.Duration
	SessionTTL       time.Duration
}

type service struct {
	deps Deps
}

func NewService(deps Deps) Service {
	return &service{deps: deps}
}

func (s *service) CheckEmail(ctx context.Context, email, ip string) (bool, error) {
	if err := s.deps.Limiter.Check(ctx, ratelimit.ActionCheckEmail, email, ip); err != nil {
		return false, err
	}
	if !validate.Email(email) {
		return false, fmt.Errorf("invalid email: %w", domain.ErrBadRequest)
	}
	_, err := s.deps.UserRepo.GetStaffByEmail(ctx, email)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (s *service) SendOtp(ctx context.Context, req SendOtpRequest, ip string) error {
	if !validate.Email(req.Email) {
		return fmt.Errorf("invalid email: %w", domain.ErrBadRequest)
	}
	if !validate.Intent(req.Intent) {
		return fmt.Errorf("unknown intent: %w", domain.ErrBadRequest)
	}
	if err := s.deps.Limiter.Check(ctx, ratelimit.ActionSendOTP, req.Email, ip); err != nil {
		return err
	}

	var user *domain.User
	switch req.Intent {
	case domain.IntentRegister:
		if _, err := s.deps.UserRepo.GetByEmail(ctx, req.Email); err == nil {
			return fmt.Errorf("account already exists: %w", domain.ErrConflict)
		}
	case domain.IntentInvited:
		inv, err := s.deps.InviteRepo.GetByEmail(ctx, req.Email)
		if err != nil || !inv.Redeemable(time.Now()) {
			return fmt.Errorf("no valid invite: %w", domain.ErrForbidden)
		}
	case domain.IntentLogin, domain.IntentResetPassword:
		u, err := s.deps.UserRepo.GetByEmail(ctx, req.Email)
		if err != nil {
			// Burn comparable time and report success so the response does
			// not reveal whether the address has an account.
			password.Verify("000000", password.DummyHash)
			return nil
		}
		user = u
	case domain.IntentEmailChange:
		// Code goes to the new address, which has no account yet.
	}

	code, err := otp.Generate()
	if err != nil {
		return err
	}
	hash, err := otp.Hash(code)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	rec := &domain.OneTimePasscode{
		OtpID:     id.New(),
		Email:     req.Email,
		Intent:    req.Intent,
		CodeHash:  hash,
		Used:      false,
		ExpiresAt: now.Add(s.deps.OtpTTL).Unix(),
		CreatedAt: now,
	}
	if err := s.deps.OtpRepo.CreateAndInvalidateOld(ctx, rec); err != nil {
		return err
	}

	msg := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.",
		code, int(s.deps.OtpTTL.Minutes()))
	if req.Channel == "sms" {
		if s.deps.SMSSender == nil {
			return fmt.Errorf("sms delivery unavailable: %w", domain.ErrBadRequest)
		}
		if user == nil || user.Phone == nil {
			return fmt.Errorf("no phone number on account: %w", domain.ErrBadRequest)
		}
		return s.deps.SMSSender.SendSMS(ctx, *user.Phone, msg)
	}
	return s.deps.Mailer.SendEmail(req.Email, "Your verification code", msg)
}

func (s *service) VerifyOtp(ctx context.Context, req VerifyOtpRequest, ip string) (*VerifyOtpResult, error) {
	if err := s.deps.Limiter.Check(ctx, ratelimit.ActionVerifyOTP, req.Email, ip); err != nil {
		return nil, err
	}
	// Format, lookup and mismatch failures all surface the same way so the
	// response does not say which check fired.
	if !validate.Intent(req.Intent) || !validate.OTPFormat(req.Code) {
		return nil, errInvalidCode()
	}
	rec, err := s.deps.OtpRepo.GetActive(ctx, req.Email, req.Intent)
	if err != nil {
		otp.Verify(req.Code, password.DummyHash)
		return nil, errInvalidCode()
	}
	if !otp.Verify(req.Code, rec.CodeHash) {
		return nil, errInvalidCode()
	}

	if err := s.deps.OtpRepo.MarkUsed(ctx, rec.OtpID); err != nil {
		return nil, err
	}
	sid, err := token.New()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	as := &domain.AuthSession{
		SessionID: sid,
		Email:     req.Email,
		Intent:    req.Intent,
		ExpiresAt: now.Add(authSessionTTL).Unix(),
		CreatedAt: now,
	}
	if err := s.deps.AuthSessionRepo.CreateAndReplace(ctx, as); err != nil {
		return nil, err
	}
	// The code was right, so earlier typos stop counting against the key.
	if err := s.deps.Limiter.Reset(ctx, ratelimit.ActionVerifyOTP, req.Email, ip); err != nil {
		slog.Warn("failed to reset verify-otp counter", "email", req.Email, "err", err)
	}
	return &VerifyOtpResult{AuthSessionID: sid, ExpiresAt: as.ExpiresAt}, nil
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*LoginResult, error) {
	as, err := s.deps.AuthSessionRepo.GetActive(ctx, req.AuthSessionID)
	if err != nil {
		return nil, fmt.Errorf("verification expired, restart sign-up: %w", domain.ErrUnauthorized)
	}
	if as.Intent != domain.IntentRegister && as.Intent != domain.IntentInvited {
		return nil, fmt.Errorf("verification does not cover sign-up: %w", domain.ErrUnauthorized)
	}
	if ok, problems := validate.Password(req.Password); !ok {
		return nil, fmt.Errorf("password %s: %w", strings.Join(problems, "; "), domain.ErrBadRequest)
	}
	if _, err := s.deps.UserRepo.GetByEmail(ctx, as.Email); err == nil {
		return nil, fmt.Errorf("account already exists: %w", domain.ErrConflict)
	}

	role := domain.RoleMember
	var redeemedInvite *domain.Invite
	if req.InviteToken != "" {
		inv, err := s.deps.InviteRepo.FindValidByToken(ctx, req.InviteToken)
		if err != nil {
			return nil, fmt.Errorf("invite invalid or expired: %w", domain.ErrForbidden)
		}
		if inv.Email != as.Email {
			return nil, fmt.Errorf("invite is for a different address: %w", domain.ErrForbidden)
		}
		role = inv.Role
		redeemedInvite = inv
	} else if as.Intent == domain.IntentInvited {
		return nil, fmt.Errorf("invite token required: %w", domain.ErrForbidden)
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Email:        as.Email,
		PasswordHash: hash,
		Role:         role,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Enable:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.deps.UserRepo.Put(ctx, u); err != nil {
		return nil, err
	}
	if redeemedInvite != nil {
		if err := s.deps.InviteRepo.MarkUsed(ctx, redeemedInvite.Email); err != nil {
			slog.Warn("failed to mark invite used", "email", redeemedInvite.Email, "err", err)
		}
	}
	if err := s.deps.AuthSessionRepo.Delete(ctx, as.SessionID); err != nil {
		slog.Warn("failed to delete auth session", "session_id", as.SessionID, "err", err)
	}
	return s.issueLoginSession(ctx, u)
}

func (s *service) Login(ctx context.Context, req LoginRequest, ip string) (*LoginResult, error) {
	if err := s.deps.Limiter.Check(ctx, ratelimit.ActionLogin, req.Email, ip); err != nil {
		return nil, err
	}
	u, err := s.deps.UserRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		// Same cost as a real compare; result intentionally discarded.
		password.Verify(req.Password, password.DummyHash)
		return nil, errInvalidCredentials()
	}
	if !password.Verify(req.Password, u.PasswordHash) {
		return nil, errInvalidCredentials()
	}
	if !u.Enable {
		return nil, fmt.Errorf("account disabled: %w", domain.ErrForbidden)
	}
	if err := s.deps.Limiter.Reset(ctx, ratelimit.ActionLogin, req.Email, ip); err != nil {
		slog.Warn("failed to reset login counter", "email", req.Email, "err", err)
	}
	return s.issueLoginSession(ctx, u)
}

func (s *service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	as, err := s.deps.AuthSessionRepo.GetActive(ctx, req.AuthSessionID)
	if err != nil {
		return fmt.Errorf("verification expired, restart recovery: %w", domain.ErrUnauthorized)
	}
	if as.Intent != domain.IntentResetPassword {
		return fmt.Errorf("verification does not cover password reset: %w", domain.ErrUnauthorized)
	}
	if ok, problems := validate.Password(req.NewPassword); !ok {
		return fmt.Errorf("password %s: %w", strings.Join(problems, "; "), domain.ErrBadRequest)
	}
	u, err := s.deps.UserRepo.GetByEmail(ctx, as.Email)
	if err != nil {
		return fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	hash, err := password.Hash(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.deps.UserRepo.Update(ctx, u.UserID, map[string]interface{}{"password_hash": hash}); err != nil {
		return err
	}
	// All existing cookies stop resolving; the attacker who prompted the
	// reset is logged out along with everyone else.
	if err := s.deps.LoginSessionRepo.DisableByUser(ctx, u.UserID); err != nil {
		slog.Warn("failed to disable sessions after reset", "user_id", u.UserID, "err", err)
	}
	if err := s.deps.AuthSessionRepo.Delete(ctx, as.SessionID); err != nil {
		slog.Warn("failed to delete auth session", "session_id", as.SessionID, "err", err)
	}
	return nil
}

func (s *service) Logout(ctx context.Context, sessionID string) error {
	return s.deps.LoginSessionRepo.Disable(ctx, sessionID)
}

func (s *service) CurrentSession(ctx context.Context, sessionID string) (*domain.LoginSession, error) {
	sess, err := s.deps.LoginSessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, &domain.SessionExpiredError{Reason: "no session"}
	}
	if !sess.Active(time.Now()) {
		return nil, &domain.SessionExpiredError{Reason: "session disabled or expired"}
	}
	u, err := s.deps.UserRepo.Get(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	sess.User = u
	return sess, nil
}

func (s *service) issueLoginSession(ctx context.Context, u *domain.User) (*LoginResult, error) {
	now := time.Now().UTC()
	sess := &domain.LoginSession{
		SessionID: id.New(),
		UserID:    u.UserID,
		Email:     u.Email,
		Enable:    true,
		ExpiresAt: now.Add(s.deps.SessionTTL).Unix(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.deps.LoginSessionRepo.Put(ctx, sess); err != nil {
		return nil, err
	}
	return &LoginResult{SessionID: sess.SessionID, User: u}, nil
}

func errInvalidCode() error {
	return fmt.Errorf("invalid or expired code: %w", domain.ErrUnauthorized)
}

func errInvalidCredentials() error {
	return fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
}
