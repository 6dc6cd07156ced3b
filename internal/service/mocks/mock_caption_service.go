package mocks

import (
	"context"
	"io"
	"time"

	"captionapi/internal/model"
	"captionapi/internal/service"
	"captionapi/internal/storage"

	"github.com/stretchr/testify/mock"
)

type MockCaptionService struct {
	mock.Mock
}

func (m *MockCaptionService) Process(ctx context.Context, in service.ProcessInput) (*model.Caption, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Caption), args.Error(1)
}

func (m *MockCaptionService) List(ctx context.Context, limit, offset int) (*service.CaptionListResult, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CaptionListResult), args.Error(1)
}

func (m *MockCaptionService) Get(ctx context.Context, id string) (*model.Caption, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Caption), args.Error(1)
}

func (m *MockCaptionService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCaptionService) OpenArtifact(ctx context.Context, id string, kind model.ArtifactKind) (io.ReadCloser, storage.ObjectInfo, error) {
	args := m.Called(ctx, id, kind)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Get(1).(storage.ObjectInfo), args.Error(2)
}

func (m *MockCaptionService) PresignArtifact(ctx context.Context, id string, kind model.ArtifactKind, expiry time.Duration) (string, error) {
	args := m.Called(ctx, id, kind, expiry)
	return args.String(0), args.Error(1)
}

func (m *MockCaptionService) Languages() []model.Language {
	args := m.Called()
	langs, _ := args.Get(0).([]model.Language)
	return langs
}
