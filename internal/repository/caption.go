// Package repository contains data access layer abstractions.
// Implementations live in subpackages (e.g. postgres).
package repository

import (
	"context"

	"captionapi/internal/model"
)

// CaptionRepository persists caption records. No business logic here.
type CaptionRepository interface {
	// Create inserts a new caption record and returns the stored row.
	Create(ctx context.Context, c *model.Caption) (*model.Caption, error)

	// FindByID returns a caption by its ID, or sql.ErrNoRows.
	FindByID(ctx context.Context, id string) (*model.Caption, error)

	// List returns a page of captions, newest first, and the total row count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Caption], error)

	// Delete removes a caption by ID. It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, id string) error
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
type PageResult[T any] struct {
	Items []T
	Total int
}
