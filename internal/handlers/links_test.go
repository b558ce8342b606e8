package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tracklink/internal/models"
	"tracklink/internal/services"
	"tracklink/internal/testutil"
)

const testBaseURL = "https://tl.example"

func setupLinkHandler(t *testing.T, repo *testutil.MockLinkRepository, recognition services.RecognitionGateway) *testutil.HTTPTestHelper {
	helper := testutil.NewHTTPTestHelper(t)

	resolver := services.NewResolutionService(repo, recognition, 5, 0.8, time.Second)
	handler := NewLinkHandler(resolver, repo, testBaseURL)
	handler.RegisterRoutes(helper.Router())

	return helper
}

func TestResolveLinkValidation(t *testing.T) {
	repo := &testutil.MockLinkRepository{}
	helper := setupLinkHandler(t, repo, nil)

	t.Run("missing input field", func(t *testing.T) {
		recorder := helper.PostJSON("/api/v1/links", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("whitespace input", func(t *testing.T) {
		recorder := helper.PostJSON("/api/v1/links", map[string]string{"input": "   "})
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestResolveLinkCreated(t *testing.T) {
	repo := &testutil.MockLinkRepository{}
	repo.On("FindByISRC", mock.Anything, "USAB12300001").Return(nil, nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil, nil)

	recognition := &testutil.MockRecognitionGateway{}
	recognition.On("RecognizeByText", mock.Anything, "USAB12300001").Return(&services.RecognitionResult{
		Track: models.BaseTrack{Title: "Midnight Drive", Artist: "Jane Doe", ISRC: "USAB12300001"},
		Links: map[string]string{
			models.PlatformSpotify: "https://open.spotify.com/track/abc",
		},
	}, nil)

	helper := setupLinkHandler(t, repo, recognition)

	recorder := helper.PostJSON("/api/v1/links", map[string]string{"input": "USAB12300001"})
	require.Equal(t, http.StatusCreated, recorder.Code)

	var response ResolveLinkResponse
	helper.DecodeJSON(recorder, &response)
	assert.Equal(t, "RESOLVED", response.Outcome)
	require.NotNil(t, response.Link)
	assert.Equal(t, "Midnight Drive", response.Link.Title)
	assert.Equal(t, testBaseURL+"/s/"+response.Link.Slug, response.Link.ShortURL)
	assert.Contains(t, response.Link.Platforms, models.PlatformSpotify)
}

func TestResolveLinkCachedHit(t *testing.T) {
	existing := testutil.NewLinkBuilder().
		WithISRC("USAB12300001").
		WithSlug("midnight-drive").
		WithPlatformLink(models.PlatformSpotify, "abc", "https://open.spotify.com/track/abc", 0.9).
		Build()

	repo := &testutil.MockLinkRepository{}
	repo.On("FindByISRC", mock.Anything, "USAB12300001").Return(existing, nil)

	helper := setupLinkHandler(t, repo, nil)

	recorder := helper.PostJSON("/api/v1/links", map[string]string{"input": "USAB12300001"})
	require.Equal(t, http.StatusOK, recorder.Code)

	var response ResolveLinkResponse
	helper.DecodeJSON(recorder, &response)
	assert.Equal(t, "CACHED", response.Outcome)
	require.NotNil(t, response.Link)
	assert.Equal(t, "midnight-drive", response.Link.Slug)
}

func TestResolveLinkLowConfidence(t *testing.T) {
	repo := &testutil.MockLinkRepository{}
	repo.On("FindByTitleArtist", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	helper := setupLinkHandler(t, repo, nil)

	recorder := helper.PostJSON("/api/v1/links", map[string]string{"input": "Jane Doe - Midnight Drive"})
	require.Equal(t, http.StatusUnprocessableEntity, recorder.Code)

	var response ResolveLinkResponse
	helper.DecodeJSON(recorder, &response)
	assert.Equal(t, "LOW_CONFIDENCE", response.Outcome)
	assert.Nil(t, response.Link)
	assert.Contains(t, response.Message, "direct streaming link")
}

func TestGetLink(t *testing.T) {
	link := testutil.NewLinkBuilder().
		WithSlug("midnight-drive").
		WithPlatformLink(models.PlatformSpotify, "abc", "https://open.spotify.com/track/abc", 0.9).
		Build()

	repo := &testutil.MockLinkRepository{}
	repo.On("FindBySlug", mock.Anything, "midnight-drive").Return(link, nil)
	repo.On("FindBySlug", mock.Anything, "unknown").Return(nil, nil)

	helper := setupLinkHandler(t, repo, nil)

	t.Run("found", func(t *testing.T) {
		recorder := helper.Get("/api/v1/links/midnight-drive")
		require.Equal(t, http.StatusOK, recorder.Code)

		var payload LinkPayload
		helper.DecodeJSON(recorder, &payload)
		assert.Equal(t, "midnight-drive", payload.Slug)
		assert.Equal(t, "https://open.spotify.com/track/abc", payload.Platforms[models.PlatformSpotify].URL)
	})

	t.Run("not found", func(t *testing.T) {
		recorder := helper.Get("/api/v1/links/unknown")
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})
}

func TestRedirect(t *testing.T) {
	t.Run("redirects to highest-priority platform", func(t *testing.T) {
		link := testutil.NewLinkBuilder().
			WithSlug("midnight-drive").
			WithPlatformLink(models.PlatformTidal, "111", "https://tidal.com/browse/track/111", 0.9).
			WithPlatformLink(models.PlatformSpotify, "abc", "https://open.spotify.com/track/abc", 0.7).
			Build()

		repo := &testutil.MockLinkRepository{}
		repo.On("FindBySlug", mock.Anything, "midnight-drive").Return(link, nil)
		repo.On("IncrementClicks", mock.Anything, "midnight-drive").Return(nil)

		helper := setupLinkHandler(t, repo, nil)

		recorder := helper.Get("/s/midnight-drive")
		assert.Equal(t, http.StatusFound, recorder.Code)
		assert.Equal(t, "https://open.spotify.com/track/abc", recorder.Header().Get("Location"))
	})

	t.Run("no destination falls back to landing page", func(t *testing.T) {
		link := testutil.NewLinkBuilder().WithSlug("midnight-drive").Build()

		repo := &testutil.MockLinkRepository{}
		repo.On("FindBySlug", mock.Anything, "midnight-drive").Return(link, nil)
		repo.On("IncrementClicks", mock.Anything, "midnight-drive").Return(nil)

		helper := setupLinkHandler(t, repo, nil)

		recorder := helper.Get("/s/midnight-drive")
		assert.Equal(t, http.StatusFound, recorder.Code)
		assert.Equal(t, "/l/midnight-drive", recorder.Header().Get("Location"))
	})

	t.Run("trailing slash in base URL still falls back to landing page", func(t *testing.T) {
		link := testutil.NewLinkBuilder().WithSlug("midnight-drive").Build()

		repo := &testutil.MockLinkRepository{}
		repo.On("FindBySlug", mock.Anything, "midnight-drive").Return(link, nil)
		repo.On("IncrementClicks", mock.Anything, "midnight-drive").Return(nil)

		helper := testutil.NewHTTPTestHelper(t)
		resolver := services.NewResolutionService(repo, nil, 5, 0.8, time.Second)
		handler := NewLinkHandler(resolver, repo, testBaseURL+"/")
		handler.RegisterRoutes(helper.Router())

		recorder := helper.Get("/s/midnight-drive")
		assert.Equal(t, http.StatusFound, recorder.Code)
		assert.Equal(t, "/l/midnight-drive", recorder.Header().Get("Location"))
	})

	t.Run("unknown slug", func(t *testing.T) {
		repo := &testutil.MockLinkRepository{}
		repo.On("FindBySlug", mock.Anything, "nope").Return(nil, nil)

		helper := setupLinkHandler(t, repo, nil)

		recorder := helper.Get("/s/nope")
		assert.Equal(t, http.StatusNotFound, recorder.Code)
		repo.AssertNotCalled(t, "IncrementClicks", mock.Anything, mock.Anything)
	})
}

func TestLanding(t *testing.T) {
	link := testutil.NewLinkBuilder().
		WithSlug("midnight-drive").
		WithTitle("Midnight Drive").
		WithArtist("Jane Doe").
		Build()

	repo := &testutil.MockLinkRepository{}
	repo.On("FindBySlug", mock.Anything, "midnight-drive").Return(link, nil)

	helper := setupLinkHandler(t, repo, nil)

	recorder := helper.Get("/l/midnight-drive")
	require.Equal(t, http.StatusOK, recorder.Code)

	var payload LinkPayload
	helper.DecodeJSON(recorder, &payload)
	assert.Equal(t, "Midnight Drive", payload.Title)
	assert.Equal(t, "Jane Doe", payload.Artist)
}
