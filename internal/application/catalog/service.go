package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/go-bookstore-admin/internal/domain"
	"github.com/go-bookstore-admin/internal/pkg/id"
)

type Store interface {
	Put(ctx context.Context, b *domain.Book) error
	Get(ctx context.Context, bookID string) (*domain.Book, error)
	Update(ctx context.Context, bookID string, updates map[string]interface{}) error
	SoftDelete(ctx context.Context, bookID string) error
	ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.Book, string, error)
}

type Service interface {
	Create(ctx context.Context, req domain.CreateBookRequest) (*domain.Book, error)
	Get(ctx context.Context, bookID string) (*domain.Book, error)
	List(ctx context.Context, limit int32, cursor string) ([]domain.Book, string, error)
	Update(ctx context.Context, bookID string, req domain.UpdateBookRequest) (*domain.Book, error)
	Delete(ctx context.Context, bookID string) error
}

type service struct {
	store Store
}

func NewService(store Store) Service {
	return &service{store: store}
}

func (s *service) Create(ctx context.Context, req domain.CreateBookRequest) (*domain.Book, error) {
	now := time.Now().UTC()
	b := &domain.Book{
		BookID:     id.New(),
		Title:      req.Title,
		Author:     req.Author,
		ISBN:       req.ISBN,
		Category:   req.Category,
		PriceCents: req.PriceCents,
		Stock:      req.Stock,
		Enable:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Put(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *service) Get(ctx context.Context, bookID string) (*domain.Book, error) {
	b, err := s.store.Get(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if !b.Enable {
		return nil, fmt.Errorf("book not found: %w", domain.ErrNotFound)
	}
	return b, nil
}

func (s *service) List(ctx context.Context, limit int32, cursor string) ([]domain.Book, string, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	return s.store.ScanPage(ctx, limit, cursor)
}

func (s *service) Update(ctx context.Context, bookID string, req domain.UpdateBookRequest) (*domain.Book, error) {
	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Author != nil {
		updates["author"] = *req.Author
	}
	if req.ISBN != nil {
		updates["isbn"] = *req.ISBN
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.PriceCents != nil {
		updates["price_cents"] = *req.PriceCents
	}
	if req.Stock != nil {
		updates["stock"] = *req.Stock
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("no fields to update: %w", domain.ErrBadRequest)
	}
	if err := s.store.Update(ctx, bookID, updates); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, bookID)
}

func (s *service) Delete(ctx context.Context, bookID string) error {
	return s.store.SoftDelete(ctx, bookID)
}
