package domain

import "time"

type Book struct {
	BookID      string     `json:"id" dynamodbav:"book_id"`
	Title       string     `json:"title" dynamodbav:"title"`
	Author      string     `json:"author" dynamodbav:"author"`
	ISBN        string     `json:"isbn,omitempty" dynamodbav:"isbn"`
	Category    string     `json:"category,omitempty" dynamodbav:"category"`
	PriceCents  int        `json:"price_cents" dynamodbav:"price_cents"`
	Stock       int        `json:"stock" dynamodbav:"stock"`
	Enable      bool       `json:"enable" dynamodbav:"enable"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" dynamodbav:"deleted_at"`
	CreatedAt   time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt   time.Time  `json:"updated" dynamodbav:"updated_at"`
}

type CreateBookRequest struct {
	Title      string `json:"title" validate:"required"`
	Author     string `json:"author" validate:"required"`
	ISBN       string `json:"isbn"`
	Category   string `json:"category"`
	PriceCents int    `json:"price_cents" validate:"gte=0"`
	Stock      int    `json:"stock" validate:"gte=0"`
}

type UpdateBookRequest struct {
	Title      *string `json:"title"`
	Author     *string `json:"author"`
	ISBN       *string `json:"isbn"`
	Category   *string `json:"category"`
	PriceCents *int    `json:"price_cents" validate:"omitempty,gte=0"`
	Stock      *int    `json:"stock" validate:"omitempty,gte=0"`
}
