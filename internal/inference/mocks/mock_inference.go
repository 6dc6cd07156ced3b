package mocks

import (
	"context"

	"captionapi/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockCaptioner struct {
	mock.Mock
}

func (m *MockCaptioner) Caption(ctx context.Context, image []byte, contentType string) (string, error) {
	args := m.Called(ctx, image, contentType)
	return args.String(0), args.Error(1)
}

type MockTranslator struct {
	mock.Mock
}

func (m *MockTranslator) Translate(ctx context.Context, text string, target model.Language) (string, error) {
	args := m.Called(ctx, text, target)
	return args.String(0), args.Error(1)
}

type MockSynthesizer struct {
	mock.Mock
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	args := m.Called(ctx, text, lang)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}
