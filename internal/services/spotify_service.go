package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"tracklink/internal/models"
)

// spotifyService implements PlatformService for Spotify
type spotifyService struct {
	client      *resty.Client
	tokenSource *clientcredentials.Config
	limiter     *rate.Limiter
	accessToken string
	tokenExpiry time.Time
	mu          sync.RWMutex
}

// Spotify API endpoints
const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyAPIURL   = "https://api.spotify.com/v1"
)

// NewSpotifyService creates a new Spotify service
func NewSpotifyService(clientID, clientSecret string, timeout time.Duration) PlatformService {
	tokenSource := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyTokenURL,
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)

	return &spotifyService{
		client:      client,
		tokenSource: tokenSource,
		limiter:     rate.NewLimiter(rate.Limit(10), 10),
	}
}

// GetPlatformName returns the platform name
func (s *spotifyService) GetPlatformName() string {
	return models.PlatformSpotify
}

// ParseURL extracts the track ID from a Spotify URL
func (s *spotifyService) ParseURL(url string) (*models.Candidate, error) {
	platform, trackID, err := ParsePlatformURL(url)
	if err != nil || platform != models.PlatformSpotify {
		return nil, &PlatformError{
			Platform:  models.PlatformSpotify,
			Operation: "parse_url",
			Message:   "invalid Spotify URL format",
			URL:       url,
		}
	}

	return &models.Candidate{
		Platform:   models.PlatformSpotify,
		ExternalID: trackID,
		URL:        s.BuildURL(trackID),
	}, nil
}

// GetTrackByID fetches track details from the Spotify API
func (s *spotifyService) GetTrackByID(ctx context.Context, trackID string) (*models.Candidate, error) {
	token, err := s.getOrRefreshToken(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var spotifyTrack spotifyTrack
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&spotifyTrack).
		Get(fmt.Sprintf("%s/tracks/%s", spotifyAPIURL, trackID))

	if err != nil {
		return nil, &PlatformError{
			Platform:  models.PlatformSpotify,
			Operation: "get_track",
			Message:   "request failed",
			Err:       err,
		}
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, &PlatformError{
			Platform:  models.PlatformSpotify,
			Operation: "get_track",
			Message:   "track not found",
		}
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, &PlatformError{
			Platform:  models.PlatformSpotify,
			Operation: "get_track",
			Message:   fmt.Sprintf("API returned status %d", resp.StatusCode()),
		}
	}

	candidate := s.convertTrack(&spotifyTrack)
	return &candidate, nil
}

// Search searches Spotify for candidates matching the reference track.
// ISRC-first when available, otherwise "{artist} {title}" free text.
func (s *spotifyService) Search(ctx context.Context, base models.BaseTrack, limit int) []models.Candidate {
	candidates, err := s.search(ctx, base, limit)
	if err != nil {
		slog.Warn("Spotify search failed",
			"title", base.Title,
			"artist", base.PrimaryArtist(),
			"error", err)
		return nil
	}
	return candidates
}

func (s *spotifyService) search(ctx context.Context, base models.BaseTrack, limit int) ([]models.Candidate, error) {
	token, err := s.getOrRefreshToken(ctx)
	if err != nil {
		return nil, err
	}

	searchQuery := searchText(base)
	if base.ISRC != "" {
		searchQuery = "isrc:" + base.ISRC
	}
	if searchQuery == "" {
		return nil, nil
	}

	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > 50 {
		limit = 50 // Spotify API limit
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var searchResult spotifySearchResult
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(map[string]string{
			"q":     searchQuery,
			"type":  "track",
			"limit": fmt.Sprintf("%d", limit),
		}).
		SetResult(&searchResult).
		Get(fmt.Sprintf("%s/search", spotifyAPIURL))

	if err != nil {
		return nil, &PlatformError{
			Platform:  models.PlatformSpotify,
			Operation: "search",
			Message:   "request failed",
			Err:       err,
		}
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, &PlatformError{
			Platform:  models.PlatformSpotify,
			Operation: "search",
			Message:   fmt.Sprintf("API returned status %d", resp.StatusCode()),
		}
	}

	candidates := make([]models.Candidate, 0, len(searchResult.Tracks.Items))
	for i := range searchResult.Tracks.Items {
		candidates = append(candidates, s.convertTrack(&searchResult.Tracks.Items[i]))
	}

	return candidates, nil
}

// BuildURL constructs a Spotify URL from a track ID
func (s *spotifyService) BuildURL(trackID string) string {
	return fmt.Sprintf("https://open.spotify.com/track/%s", trackID)
}

// Health checks Spotify API health
func (s *spotifyService) Health(ctx context.Context) error {
	_, err := s.getOrRefreshToken(ctx)
	return err
}

// getOrRefreshToken returns a valid access token, refreshing when the cached
// one is missing or expired. Two overlapping callers may both refresh; the
// redundant fetch is harmless.
func (s *spotifyService) getOrRefreshToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.accessToken != "" && time.Now().Before(s.tokenExpiry) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if s.accessToken != "" && time.Now().Before(s.tokenExpiry) {
		return s.accessToken, nil
	}

	token, err := s.tokenSource.Token(ctx)
	if err != nil {
		return "", &PlatformError{
			Platform:  models.PlatformSpotify,
			Operation: "auth",
			Message:   "failed to get access token",
			Err:       err,
		}
	}

	s.accessToken = token.AccessToken
	s.tokenExpiry = token.Expiry

	slog.Info("Spotify access token refreshed", "expires_at", token.Expiry)

	return s.accessToken, nil
}

// convertTrack converts a Spotify API response track to a Candidate
func (s *spotifyService) convertTrack(track *spotifyTrack) models.Candidate {
	artists := make([]string, len(track.Artists))
	for i, artist := range track.Artists {
		artists[i] = artist.Name
	}

	var coverArt string
	if len(track.Album.Images) > 0 {
		coverArt = track.Album.Images[0].URL
	}

	candidate := models.Candidate{
		Platform:   models.PlatformSpotify,
		ExternalID: track.ID,
		URL:        s.BuildURL(track.ID),
	}
	candidate.Title = track.Name
	if len(artists) > 0 {
		candidate.Artist = artists[0]
	}
	candidate.Artists = artists
	candidate.Album = track.Album.Name
	candidate.ISRC = track.ExternalIDs.ISRC
	candidate.DurationSeconds = track.DurationMs / 1000
	candidate.ReleaseDate = track.Album.ReleaseDate
	candidate.Label = track.Album.Label
	candidate.CoverArtURL = coverArt

	return candidate
}

// Spotify API response structures
type spotifyTrack struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Artists     []spotifyArtist    `json:"artists"`
	Album       spotifyAlbum       `json:"album"`
	DurationMs  int                `json:"duration_ms"`
	Explicit    bool               `json:"explicit"`
	ExternalIDs spotifyExternalIDs `json:"external_ids"`
}

type spotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type spotifyAlbum struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Label       string         `json:"label,omitempty"`
	ReleaseDate string         `json:"release_date"`
	Images      []spotifyImage `json:"images"`
}

type spotifyImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type spotifyExternalIDs struct {
	ISRC string `json:"isrc"`
}

type spotifySearchResult struct {
	Tracks spotifyTracksPaging `json:"tracks"`
}

type spotifyTracksPaging struct {
	Items []spotifyTrack `json:"items"`
	Total int            `json:"total"`
}
