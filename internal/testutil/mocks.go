package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"tracklink/internal/models"
	"tracklink/internal/services"
)

// MockLinkRepository is a mock implementation of LinkRepository for testing
type MockLinkRepository struct {
	mock.Mock
}

func (m *MockLinkRepository) FindByISRC(ctx context.Context, isrc string) (*models.SmartLink, error) {
	args := m.Called(ctx, isrc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SmartLink), args.Error(1)
}

func (m *MockLinkRepository) FindByTitleArtist(ctx context.Context, title, artist string) (*models.SmartLink, error) {
	args := m.Called(ctx, title, artist)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SmartLink), args.Error(1)
}

func (m *MockLinkRepository) FindBySlug(ctx context.Context, slug string) (*models.SmartLink, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SmartLink), args.Error(1)
}

func (m *MockLinkRepository) FindByPlatformID(ctx context.Context, platform, externalID string) (*models.SmartLink, error) {
	args := m.Called(ctx, platform, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SmartLink), args.Error(1)
}

// Save echoes the input link when the configured return value is nil and no
// error is set, mirroring the repository's insert path.
func (m *MockLinkRepository) Save(ctx context.Context, link *models.SmartLink) (*models.SmartLink, error) {
	args := m.Called(ctx, link)
	if args.Get(0) == nil {
		if err := args.Error(1); err != nil {
			return nil, err
		}
		return link, nil
	}
	return args.Get(0).(*models.SmartLink), args.Error(1)
}

func (m *MockLinkRepository) IncrementClicks(ctx context.Context, slug string) error {
	args := m.Called(ctx, slug)
	return args.Error(0)
}

func (m *MockLinkRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockRecognitionGateway is a mock implementation of RecognitionGateway
type MockRecognitionGateway struct {
	mock.Mock
}

func (m *MockRecognitionGateway) RecognizeByURL(ctx context.Context, url string) (*services.RecognitionResult, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.RecognitionResult), args.Error(1)
}

func (m *MockRecognitionGateway) RecognizeByText(ctx context.Context, query string) (*services.RecognitionResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.RecognitionResult), args.Error(1)
}

// MockPlatformService is a mock implementation of PlatformService
type MockPlatformService struct {
	mock.Mock
	Name string
}

func (m *MockPlatformService) GetPlatformName() string {
	return m.Name
}

func (m *MockPlatformService) ParseURL(url string) (*models.Candidate, error) {
	args := m.Called(url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Candidate), args.Error(1)
}

func (m *MockPlatformService) GetTrackByID(ctx context.Context, trackID string) (*models.Candidate, error) {
	args := m.Called(ctx, trackID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Candidate), args.Error(1)
}

func (m *MockPlatformService) Search(ctx context.Context, base models.BaseTrack, limit int) []models.Candidate {
	args := m.Called(ctx, base, limit)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]models.Candidate)
}

func (m *MockPlatformService) BuildURL(trackID string) string {
	args := m.Called(trackID)
	return args.String(0)
}

func (m *MockPlatformService) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
