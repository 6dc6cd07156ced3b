package mocks

import (
	"context"

	"captionapi/internal/model"
	"captionapi/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockCaptionRepository struct {
	mock.Mock
}

func (m *MockCaptionRepository) Create(ctx context.Context, c *model.Caption) (*model.Caption, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Caption), args.Error(1)
}

func (m *MockCaptionRepository) FindByID(ctx context.Context, id string) (*model.Caption, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Caption), args.Error(1)
}

func (m *MockCaptionRepository) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Caption], error) {
	args := m.Called(ctx, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Caption]), args.Error(1)
}

func (m *MockCaptionRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
