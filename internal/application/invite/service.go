package invite

import (
	"context"
	"fmt"
	"time"

	"github.com/go-bookstore-admin/internal/domain"
	"github.com/go-bookstore-admin/internal/pkg/token"
	"github.com/go-bookstore-admin/internal/pkg/validate"
)

type Store interface {
	Upsert(ctx context.Context, inv *domain.Invite) error
	GetByEmail(ctx context.Context, email string) (*domain.Invite, error)
	List(ctx context.Context) ([]domain.Invite, error)
	Delete(ctx context.Context, email string) error
}

type Mailer interface {
	SendEmail(to, subject, body string) error
}

type CreateRequest struct {
	Email string `json:"email" validate:"required"`
	Role  string `json:"role" validate:"required"`
	Desc  string `json:"desc"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest, invitedBy string) (*domain.Invite, error)
	List(ctx context.Context) ([]domain.Invite, error)
	Revoke(ctx context.Context, email string) error
}

type service struct {
	store   Store
	mailer  Mailer
	baseURL string
	ttl     time.Duration
}

func NewService(store Store, mailer Mailer, baseURL string, ttl time.Duration) Service {
	return &service{store: store, mailer: mailer, baseURL: baseURL, ttl: ttl}
}

// Create upserts an invite for the address. Inviting an already-invited
// address mints a fresh token and restarts the expiry clock; the old token
// is dead the moment the upsert lands.
func (s *service) Create(ctx context.Context, req CreateRequest, invitedBy string) (*domain.Invite, error) {
	if !validate.Email(req.Email) {
		return nil, fmt.Errorf("invalid email: %w", domain.ErrBadRequest)
	}
	if req.Role != domain.RoleAdmin && req.Role != domain.RoleStaff {
		return nil, fmt.Errorf("invalid invite role: %w", domain.ErrBadRequest)
	}
	t, err := token.New()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	inv := &domain.Invite{
		Email:     req.Email,
		Token:     t,
		InvitedBy: invitedBy,
		Role:      req.Role,
		Desc:      req.Desc,
		Used:      false,
		ExpiresAt: now.Add(s.ttl).Unix(),
		CreatedAt: now,
	}
	if err := s.store.Upsert(ctx, inv); err != nil {
		return nil, err
	}
	link := fmt.Sprintf("%s/signup?invite=%s", s.baseURL, t)
	body := fmt.Sprintf("You have been invited to the bookstore admin. Accept within %d days: %s",
		int(s.ttl.Hours()/24), link)
	if err := s.mailer.SendEmail(req.Email, "You're invited", body); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *service) List(ctx context.Context) ([]domain.Invite, error) {
	return s.store.List(ctx)
}

func (s *service) Revoke(ctx context.Context, email string) error {
	if _, err := s.store.GetByEmail(ctx, email); err != nil {
		return err
	}
	return s.store.Delete(ctx, email)
}
