package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tracklink/internal/models"
	"tracklink/internal/services"
	"tracklink/internal/testutil"
)

const (
	testSearchLimit       = 5
	testFreeTextThreshold = 0.8
	testProviderTimeout   = time.Second
)

func newService(repo *testutil.MockLinkRepository, recognition services.RecognitionGateway) *services.ResolutionService {
	return services.NewResolutionService(repo, recognition, testSearchLimit, testFreeTextThreshold, testProviderTimeout)
}

func TestResolveTrackEmptyInput(t *testing.T) {
	svc := newService(&testutil.MockLinkRepository{}, nil)

	_, err := svc.ResolveTrack(context.Background(), "   ", services.QueryHints{})
	assert.ErrorIs(t, err, services.ErrEmptyInput)
}

// An existing healthy record satisfies the request without touching the
// recognition provider or any platform.
func TestResolveTrackServedFromExistingRecord(t *testing.T) {
	existing := testutil.NewLinkBuilder().
		WithISRC("USAB12300001").
		WithPlatformLink(models.PlatformSpotify, "abc", "https://open.spotify.com/track/abc", 0.9).
		Build()

	repo := &testutil.MockLinkRepository{}
	repo.On("FindByISRC", mock.Anything, "USAB12300001").Return(existing, nil)

	recognition := &testutil.MockRecognitionGateway{}
	spotify := &testutil.MockPlatformService{Name: models.PlatformSpotify}

	svc := newService(repo, recognition)
	svc.RegisterPlatform(spotify)

	result, err := svc.ResolveTrack(context.Background(), "USAB12300001", services.QueryHints{})
	require.NoError(t, err)

	assert.Equal(t, services.OutcomeCached, result.Outcome)
	assert.Same(t, existing, result.Link)
	recognition.AssertNotCalled(t, "RecognizeByText", mock.Anything, mock.Anything)
	recognition.AssertNotCalled(t, "RecognizeByURL", mock.Anything, mock.Anything)
	spotify.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// The input URL is preserved verbatim for its own platform even when the
// recognition provider reports a different destination there.
func TestResolveTrackInputURLOutranksRecognition(t *testing.T) {
	inputURL := "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC"

	repo := &testutil.MockLinkRepository{}
	repo.On("FindByPlatformID", mock.Anything, models.PlatformSpotify, "4uLU6hMCjMI75M1A2tKUQC").Return(nil, nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil, nil)

	recognition := &testutil.MockRecognitionGateway{}
	recognition.On("RecognizeByURL", mock.Anything, inputURL).Return(&services.RecognitionResult{
		Track: models.BaseTrack{
			Title:  "Midnight Drive",
			Artist: "Jane Doe",
			ISRC:   "USAB12300001",
		},
		Links: map[string]string{
			models.PlatformSpotify:    "https://open.spotify.com/track/some-other-id",
			models.PlatformAppleMusic: "https://music.apple.com/us/song/333",
		},
	}, nil)

	svc := newService(repo, recognition)

	result, err := svc.ResolveTrack(context.Background(), inputURL, services.QueryHints{})
	require.NoError(t, err)
	require.Equal(t, services.OutcomeResolved, result.Outcome)
	require.NotNil(t, result.Link)

	spotifyLink := result.Link.GetPlatformLink(models.PlatformSpotify)
	require.NotNil(t, spotifyLink)
	assert.Equal(t, inputURL, spotifyLink.URL)
	assert.Equal(t, 1.0, spotifyLink.Confidence)

	appleLink := result.Link.GetPlatformLink(models.PlatformAppleMusic)
	require.NotNil(t, appleLink)
	assert.Equal(t, 0.9, appleLink.Confidence)

	assert.Equal(t, "USAB12300001", result.Link.ISRC)
	assert.Equal(t, 1.0, result.Link.MatchConfidence)
	assert.False(t, result.Link.NeedsManualReview)
}

// A URL resolution fills in platforms the input and recognition did not
// cover by searching them, while the covered platform is never searched.
func TestResolveTrackSearchSupplementsMissingPlatforms(t *testing.T) {
	inputURL := "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC"

	repo := &testutil.MockLinkRepository{}
	repo.On("FindByPlatformID", mock.Anything, models.PlatformSpotify, "4uLU6hMCjMI75M1A2tKUQC").Return(nil, nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil, nil)

	sourceTrack := testutil.NewCandidateBuilder(models.PlatformSpotify).
		WithTitle("Midnight Drive").
		WithArtist("Jane Doe").
		WithISRC("USAB12300001").
		WithDuration(212).
		Build()

	spotify := &testutil.MockPlatformService{Name: models.PlatformSpotify}
	spotify.On("GetTrackByID", mock.Anything, "4uLU6hMCjMI75M1A2tKUQC").Return(&sourceTrack, nil)

	tidalCandidate := testutil.NewCandidateBuilder(models.PlatformTidal).
		WithTitle("Midnight Drive").
		WithArtist("Jane Doe").
		WithISRC("USAB12300001").
		WithDuration(213).
		WithExternalID("111").
		WithURL("https://tidal.com/browse/track/111").
		Build()

	tidal := &testutil.MockPlatformService{Name: models.PlatformTidal}
	tidal.On("Search", mock.Anything, mock.Anything, testSearchLimit).Return([]models.Candidate{tidalCandidate})

	svc := newService(repo, nil)
	svc.RegisterPlatform(spotify)
	svc.RegisterPlatform(tidal)

	result, err := svc.ResolveTrack(context.Background(), inputURL, services.QueryHints{})
	require.NoError(t, err)
	require.Equal(t, services.OutcomeResolved, result.Outcome)
	require.NotNil(t, result.Link)

	assert.Equal(t, "Midnight Drive", result.Link.Title)
	assert.Equal(t, "Jane Doe", result.Link.Artist)
	assert.Len(t, result.Link.PlatformLinks, 2)

	spotifyLink := result.Link.GetPlatformLink(models.PlatformSpotify)
	require.NotNil(t, spotifyLink)
	assert.Equal(t, inputURL, spotifyLink.URL)

	tidalLink := result.Link.GetPlatformLink(models.PlatformTidal)
	require.NotNil(t, tidalLink)
	assert.Equal(t, "https://tidal.com/browse/track/111", tidalLink.URL)
	assert.Greater(t, tidalLink.Confidence, 0.0)

	spotify.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
	tidal.AssertExpectations(t)
}

// A free-text recognition result with no ISRC corroboration contributes
// nothing; without any other source the resolution is rejected.
func TestResolveTrackFreeTextWithoutCorroboration(t *testing.T) {
	repo := &testutil.MockLinkRepository{}
	repo.On("FindByTitleArtist", mock.Anything, "Midnight Drive", "Jane Doe").Return(nil, nil)

	recognition := &testutil.MockRecognitionGateway{}
	recognition.On("RecognizeByText", mock.Anything, "Jane Doe - Midnight Drive").Return(&services.RecognitionResult{
		Track: models.BaseTrack{Title: "Midnight Drive", Artist: "Jane Doe"},
		Links: map[string]string{
			models.PlatformSpotify: "https://open.spotify.com/track/guess",
		},
	}, nil)

	svc := newService(repo, recognition)

	result, err := svc.ResolveTrack(context.Background(), "Jane Doe - Midnight Drive", services.QueryHints{})
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeLowConfidence, result.Outcome)
	assert.Nil(t, result.Link)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// The same free-text query resolves once the recognition result carries an
// ISRC.
func TestResolveTrackFreeTextWithISRC(t *testing.T) {
	repo := &testutil.MockLinkRepository{}
	repo.On("FindByTitleArtist", mock.Anything, "Midnight Drive", "Jane Doe").Return(nil, nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil, nil)

	recognition := &testutil.MockRecognitionGateway{}
	recognition.On("RecognizeByText", mock.Anything, "Jane Doe - Midnight Drive").Return(&services.RecognitionResult{
		Track: models.BaseTrack{Title: "Midnight Drive", Artist: "Jane Doe", ISRC: "USAB12300001"},
		Links: map[string]string{
			models.PlatformSpotify: "https://open.spotify.com/track/abc",
		},
	}, nil)

	svc := newService(repo, recognition)

	result, err := svc.ResolveTrack(context.Background(), "Jane Doe - Midnight Drive", services.QueryHints{})
	require.NoError(t, err)
	require.Equal(t, services.OutcomeResolved, result.Outcome)
	require.NotNil(t, result.Link)

	spotifyLink := result.Link.GetPlatformLink(models.PlatformSpotify)
	require.NotNil(t, spotifyLink)
	assert.Equal(t, 0.9, spotifyLink.Confidence)
}

// Free-text platform search alone cannot clear the strict gate; the scorer
// tops out below the free-text floor without an ISRC on either side.
func TestResolveTrackFreeTextSearchAloneRejected(t *testing.T) {
	repo := &testutil.MockLinkRepository{}
	repo.On("FindByTitleArtist", mock.Anything, "Midnight Drive", "Jane Doe").Return(nil, nil)

	candidate := testutil.NewCandidateBuilder(models.PlatformSpotify).
		WithTitle("Midnight Drive").
		WithArtist("Jane Doe").
		Build()

	spotify := &testutil.MockPlatformService{Name: models.PlatformSpotify}
	spotify.On("Search", mock.Anything, mock.Anything, testSearchLimit).Return([]models.Candidate{candidate})

	svc := newService(repo, nil)
	svc.RegisterPlatform(spotify)

	result, err := svc.ResolveTrack(context.Background(), "Jane Doe - Midnight Drive", services.QueryHints{})
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeLowConfidence, result.Outcome)
	spotify.AssertExpectations(t)
}

// A record flagged for manual review is re-resolved in place: same id, same
// slug, refreshed destinations.
func TestResolveTrackReResolvesFlaggedRecord(t *testing.T) {
	existing := testutil.NewLinkBuilder().
		WithID("507f1f77bcf86cd799439011").
		WithSlug("midnight-drive").
		WithISRC("USAB12300001").
		NeedingReview().
		Build()

	repo := &testutil.MockLinkRepository{}
	repo.On("FindByISRC", mock.Anything, "USAB12300001").Return(existing, nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil, nil)

	recognition := &testutil.MockRecognitionGateway{}
	recognition.On("RecognizeByText", mock.Anything, "USAB12300001").Return(&services.RecognitionResult{
		Track: models.BaseTrack{Title: "Midnight Drive", Artist: "Jane Doe", ISRC: "USAB12300001"},
		Links: map[string]string{
			models.PlatformSpotify: "https://open.spotify.com/track/abc",
		},
	}, nil)

	svc := newService(repo, recognition)

	result, err := svc.ResolveTrack(context.Background(), "USAB12300001", services.QueryHints{})
	require.NoError(t, err)
	require.Equal(t, services.OutcomeResolved, result.Outcome)
	require.NotNil(t, result.Link)

	assert.Equal(t, existing.ID, result.Link.ID)
	assert.Equal(t, "midnight-drive", result.Link.Slug)
	assert.False(t, result.Link.NeedsManualReview)
	assert.True(t, result.Link.HasPlatform(models.PlatformSpotify))
}

// Recognition failures degrade to platform search instead of failing the
// request.
func TestResolveTrackRecognitionUnavailable(t *testing.T) {
	inputURL := "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC"

	repo := &testutil.MockLinkRepository{}
	repo.On("FindByPlatformID", mock.Anything, models.PlatformSpotify, "4uLU6hMCjMI75M1A2tKUQC").Return(nil, nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil, nil)

	recognition := &testutil.MockRecognitionGateway{}
	recognition.On("RecognizeByURL", mock.Anything, inputURL).
		Return(nil, &services.RecognitionError{Kind: services.RecognitionUnavailable})

	sourceTrack := testutil.NewCandidateBuilder(models.PlatformSpotify).
		WithTitle("Midnight Drive").
		WithArtist("Jane Doe").
		Build()

	spotify := &testutil.MockPlatformService{Name: models.PlatformSpotify}
	spotify.On("GetTrackByID", mock.Anything, "4uLU6hMCjMI75M1A2tKUQC").Return(&sourceTrack, nil)

	svc := newService(repo, recognition)
	svc.RegisterPlatform(spotify)

	result, err := svc.ResolveTrack(context.Background(), inputURL, services.QueryHints{})
	require.NoError(t, err)
	require.Equal(t, services.OutcomeResolved, result.Outcome)

	// the input URL alone still yields a one-platform link
	assert.True(t, result.Link.HasPlatform(models.PlatformSpotify))
	assert.Equal(t, inputURL, result.Link.PlatformURL(models.PlatformSpotify))
}
