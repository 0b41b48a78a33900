package user

import (
	"context"
	"fmt"

	"github.com/go-bookstore-admin/internal/domain"
)

type Store interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	SoftDelete(ctx context.Context, userID string) error
	ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error)
}

type SessionStore interface {
	DisableByUser(ctx context.Context, userID string) error
}

type Service interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	List(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error)
	Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error)
	Delete(ctx context.Context, userID string) error
}

type service struct {
	store    Store
	sessions SessionStore
}

func NewService(store Store, sessions SessionStore) Service {
	return &service{store: store, sessions: sessions}
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.store.Get(ctx, userID)
}

func (s *service) List(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	return s.store.ScanPage(ctx, limit, cursor)
}

func (s *service) Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error) {
	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Avatar != nil {
		updates["avatar"] = *req.Avatar
	}
	if req.Role != nil {
		switch *req.Role {
		case domain.RoleAdmin, domain.RoleStaff, domain.RoleMember:
			updates["role"] = *req.Role
		default:
			return nil, fmt.Errorf("invalid role: %w", domain.ErrBadRequest)
		}
	}
	if req.Enable != nil {
		updates["enable"] = *req.Enable
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("no fields to update: %w", domain.ErrBadRequest)
	}
	if err := s.store.Update(ctx, userID, updates); err != nil {
		return nil, err
	}
	// Disabling an account revokes its login sessions as well.
	if req.Enable != nil && !*req.Enable {
		if err := s.sessions.DisableByUser(ctx, userID); err != nil {
			return nil, err
		}
	}
	return s.store.Get(ctx, userID)
}

func (s *service) Delete(ctx context.Context, userID string) error {
	if err := s.store.SoftDelete(ctx, userID); err != nil {
		return err
	}
	return s.sessions.DisableByUser(ctx, userID)
}
