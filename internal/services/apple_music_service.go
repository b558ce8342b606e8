package services

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"tracklink/internal/cache"
	"tracklink/internal/models"
)

// appleMusicService implements PlatformService for Apple Music. With
// developer credentials it talks to the Apple Music API; without them it
// falls back to the unauthenticated iTunes Search API (which carries no
// ISRC in its responses).
type appleMusicService struct {
	client      *resty.Client
	limiter     *rate.Limiter
	keyID       string
	teamID      string
	privateKey  *ecdsa.PrivateKey
	jwtToken    string
	tokenExpiry time.Time
	cache       cache.Cache
	mu          sync.RWMutex
}

const (
	appleMusicAPIURL = "https://api.music.apple.com/v1"
	itunesSearchURL  = "https://itunes.apple.com"
	appleMusicStore  = "us"
	appleTokenLife   = 12 * time.Hour
)

// Cache TTLs for Apple responses. ISRC lookups are very stable.
const (
	appleSearchCacheTTL = 2 * time.Hour
	appleISRCCacheTTL   = 24 * time.Hour
)

// NewAppleMusicService creates a new Apple Music service. keyID, teamID and
// keyFile may be empty, in which case the iTunes fallback is used.
func NewAppleMusicService(keyID, teamID, keyFile string, c cache.Cache, timeout time.Duration) PlatformService {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)

	service := &appleMusicService{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(10), 10),
		keyID:   keyID,
		teamID:  teamID,
		cache:   c,
	}

	if keyID != "" && teamID != "" && keyFile != "" {
		if err := service.loadPrivateKey(keyFile); err != nil {
			slog.Error("Failed to load Apple Music private key, using iTunes fallback",
				"key_file", keyFile, "error", err)
		}
	}

	return service
}

// GetPlatformName returns the platform name
func (s *appleMusicService) GetPlatformName() string {
	return models.PlatformAppleMusic
}

// ParseURL extracts the track ID from an Apple Music URL
func (s *appleMusicService) ParseURL(url string) (*models.Candidate, error) {
	platform, trackID, err := ParsePlatformURL(url)
	if err != nil || platform != models.PlatformAppleMusic {
		return nil, &PlatformError{
			Platform:  models.PlatformAppleMusic,
			Operation: "parse_url",
			Message:   "invalid Apple Music URL format",
			URL:       url,
		}
	}

	return &models.Candidate{
		Platform:   models.PlatformAppleMusic,
		ExternalID: trackID,
		URL:        url, // keep the original URL
	}, nil
}

// GetTrackByID fetches track details by store ID
func (s *appleMusicService) GetTrackByID(ctx context.Context, trackID string) (*models.Candidate, error) {
	if s.hasDeveloperToken() {
		candidates, err := s.catalogRequest(ctx, fmt.Sprintf("%s/catalog/%s/songs/%s", appleMusicAPIURL, appleMusicStore, trackID), nil)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, &PlatformError{
				Platform:  models.PlatformAppleMusic,
				Operation: "get_track",
				Message:   "track not found",
			}
		}
		return &candidates[0], nil
	}

	candidates, err := s.itunesRequest(ctx, "/lookup", map[string]string{"id": trackID})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, &PlatformError{
			Platform:  models.PlatformAppleMusic,
			Operation: "get_track",
			Message:   "track not found",
		}
	}
	return &candidates[0], nil
}

// Search searches the Apple catalog, ISRC-first when available.
func (s *appleMusicService) Search(ctx context.Context, base models.BaseTrack, limit int) []models.Candidate {
	candidates, err := s.search(ctx, base, limit)
	if err != nil {
		slog.Warn("Apple Music search failed",
			"title", base.Title,
			"artist", base.PrimaryArtist(),
			"error", err)
		return nil
	}
	return candidates
}

func (s *appleMusicService) search(ctx context.Context, base models.BaseTrack, limit int) ([]models.Candidate, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	cacheKey, ttl := s.searchCacheKey(base)
	if s.cache != nil {
		var cached []models.Candidate
		if cache.GetJSON(ctx, s.cache, cacheKey, &cached) {
			return cached, nil
		}
	}

	var candidates []models.Candidate
	var err error

	switch {
	case base.ISRC != "" && s.hasDeveloperToken():
		candidates, err = s.catalogRequest(ctx,
			fmt.Sprintf("%s/catalog/%s/songs", appleMusicAPIURL, appleMusicStore),
			map[string]string{"filter[isrc]": base.ISRC})
	case base.ISRC != "":
		candidates, err = s.itunesRequest(ctx, "/lookup",
			map[string]string{"isrc": base.ISRC, "entity": "song"})
	case s.hasDeveloperToken():
		candidates, err = s.catalogRequest(ctx,
			fmt.Sprintf("%s/catalog/%s/search", appleMusicAPIURL, appleMusicStore),
			map[string]string{"term": searchText(base), "types": "songs", "limit": fmt.Sprintf("%d", limit)})
	default:
		candidates, err = s.itunesRequest(ctx, "/search",
			map[string]string{"term": searchText(base), "entity": "song", "limit": fmt.Sprintf("%d", limit)})
	}

	if err != nil {
		return nil, err
	}

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	if s.cache != nil && len(candidates) > 0 {
		if err := cache.SetJSON(ctx, s.cache, cacheKey, candidates, ttl); err != nil {
			slog.Debug("Failed to cache Apple Music search", "key", cacheKey, "error", err)
		}
	}

	return candidates, nil
}

func (s *appleMusicService) searchCacheKey(base models.BaseTrack) (string, time.Duration) {
	if base.ISRC != "" {
		return "api:apple_music:isrc:" + base.ISRC, appleISRCCacheTTL
	}
	return "api:apple_music:search:" + strings.ToLower(searchText(base)), appleSearchCacheTTL
}

// BuildURL constructs an Apple Music URL from a track ID
func (s *appleMusicService) BuildURL(trackID string) string {
	return fmt.Sprintf("https://music.apple.com/%s/song/%s", appleMusicStore, trackID)
}

// Health checks the Apple endpoint is reachable
func (s *appleMusicService) Health(ctx context.Context) error {
	if s.hasDeveloperToken() {
		_, err := s.ensureValidToken()
		return err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := s.client.R().SetContext(ctx).Get(itunesSearchURL + "/lookup?id=1")
	if err != nil {
		return err
	}
	if resp.StatusCode() >= http.StatusInternalServerError {
		return fmt.Errorf("itunes API returned status %d", resp.StatusCode())
	}
	return nil
}

func (s *appleMusicService) hasDeveloperToken() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.privateKey != nil
}

// catalogRequest performs an authenticated Apple Music API request and
// normalizes the response.
func (s *appleMusicService) catalogRequest(ctx context.Context, url string, params map[string]string) ([]models.Candidate, error) {
	token, err := s.ensureValidToken()
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var result appleMusicResponse
	req := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&result)
	if params != nil {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(url)
	if err != nil {
		return nil, &PlatformError{
			Platform:  models.PlatformAppleMusic,
			Operation: "catalog_request",
			Message:   "request failed",
			Err:       err,
		}
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &PlatformError{
			Platform:  models.PlatformAppleMusic,
			Operation: "catalog_request",
			Message:   fmt.Sprintf("API returned status %d", resp.StatusCode()),
		}
	}

	songs := result.Data
	if len(songs) == 0 && len(result.Results.Songs.Data) > 0 {
		songs = result.Results.Songs.Data
	}

	candidates := make([]models.Candidate, 0, len(songs))
	for _, song := range songs {
		candidates = append(candidates, s.convertCatalogSong(song))
	}
	return candidates, nil
}

// itunesRequest performs an unauthenticated iTunes Search API request.
func (s *appleMusicService) itunesRequest(ctx context.Context, path string, params map[string]string) ([]models.Candidate, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var result itunesResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&result).
		Get(itunesSearchURL + path)

	if err != nil {
		return nil, &PlatformError{
			Platform:  models.PlatformAppleMusic,
			Operation: "itunes_request",
			Message:   "request failed",
			Err:       err,
		}
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, &PlatformError{
			Platform:  models.PlatformAppleMusic,
			Operation: "itunes_request",
			Message:   fmt.Sprintf("API returned status %d", resp.StatusCode()),
		}
	}

	candidates := make([]models.Candidate, 0, len(result.Results))
	for _, item := range result.Results {
		if item.WrapperType != "" && item.WrapperType != "track" {
			continue
		}
		candidates = append(candidates, s.convertItunesTrack(item))
	}
	return candidates, nil
}

// ensureValidToken mints a developer token when the cached one is missing or
// near expiry.
func (s *appleMusicService) ensureValidToken() (string, error) {
	s.mu.RLock()
	if s.jwtToken != "" && time.Now().Before(s.tokenExpiry.Add(-time.Minute)) {
		token := s.jwtToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.jwtToken != "" && time.Now().Before(s.tokenExpiry.Add(-time.Minute)) {
		return s.jwtToken, nil
	}
	if s.privateKey == nil {
		return "", &PlatformError{
			Platform:  models.PlatformAppleMusic,
			Operation: "auth",
			Message:   "developer credentials not configured",
		}
	}

	now := time.Now()
	expiry := now.Add(appleTokenLife)

	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": s.teamID,
		"iat": now.Unix(),
		"exp": expiry.Unix(),
	})
	token.Header["kid"] = s.keyID

	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", &PlatformError{
			Platform:  models.PlatformAppleMusic,
			Operation: "auth",
			Message:   "failed to sign developer token",
			Err:       err,
		}
	}

	s.jwtToken = signed
	s.tokenExpiry = expiry

	slog.Info("Apple Music developer token refreshed", "expires_at", expiry)

	return signed, nil
}

// loadPrivateKey reads the ES256 private key from the configured PEM file.
func (s *appleMusicService) loadPrivateKey(keyFile string) error {
	keyData, err := os.ReadFile(keyFile)
	if err != nil {
		return fmt.Errorf("failed to read key file: %w", err)
	}

	block, _ := pem.Decode(keyData)
	if block == nil {
		return fmt.Errorf("failed to decode PEM block")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}

	ecdsaKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return fmt.Errorf("key is not an ECDSA private key")
	}

	s.mu.Lock()
	s.privateKey = ecdsaKey
	s.mu.Unlock()
	return nil
}

// convertCatalogSong converts an Apple Music API song to a Candidate
func (s *appleMusicService) convertCatalogSong(song appleMusicSong) models.Candidate {
	attrs := song.Attributes

	url := attrs.URL
	if url == "" {
		url = s.BuildURL(song.ID)
	}

	coverArt := attrs.Artwork.URL
	coverArt = strings.ReplaceAll(coverArt, "{w}", "600")
	coverArt = strings.ReplaceAll(coverArt, "{h}", "600")

	candidate := models.Candidate{
		Platform:   models.PlatformAppleMusic,
		ExternalID: song.ID,
		URL:        url,
	}
	candidate.Title = attrs.Name
	candidate.Artist = attrs.ArtistName
	candidate.Artists = []string{attrs.ArtistName}
	candidate.Album = attrs.AlbumName
	candidate.ISRC = attrs.ISRC
	candidate.DurationSeconds = attrs.DurationInMillis / 1000
	candidate.ReleaseDate = attrs.ReleaseDate
	candidate.CoverArtURL = coverArt

	return candidate
}

// convertItunesTrack converts an iTunes Search API result to a Candidate
func (s *appleMusicService) convertItunesTrack(item itunesTrack) models.Candidate {
	candidate := models.Candidate{
		Platform:   models.PlatformAppleMusic,
		ExternalID: fmt.Sprintf("%d", item.TrackID),
		URL:        item.TrackViewURL,
	}
	candidate.Title = item.TrackName
	candidate.Artist = item.ArtistName
	candidate.Artists = []string{item.ArtistName}
	candidate.Album = item.CollectionName
	candidate.DurationSeconds = item.TrackTimeMillis / 1000
	candidate.ReleaseDate = item.ReleaseDate
	candidate.CoverArtURL = item.ArtworkURL100

	if candidate.URL == "" && item.TrackID != 0 {
		candidate.URL = s.BuildURL(candidate.ExternalID)
	}

	return candidate
}

// Apple Music API response structures
type appleMusicResponse struct {
	Data    []appleMusicSong `json:"data"`
	Results struct {
		Songs struct {
			Data []appleMusicSong `json:"data"`
		} `json:"songs"`
	} `json:"results"`
}

type appleMusicSong struct {
	ID         string `json:"id"`
	Attributes struct {
		Name             string `json:"name"`
		ArtistName       string `json:"artistName"`
		AlbumName        string `json:"albumName"`
		ISRC             string `json:"isrc"`
		DurationInMillis int    `json:"durationInMillis"`
		ReleaseDate      string `json:"releaseDate"`
		URL              string `json:"url"`
		Artwork          struct {
			URL string `json:"url"`
		} `json:"artwork"`
	} `json:"attributes"`
}

// iTunes Search API response structures
type itunesResponse struct {
	ResultCount int           `json:"resultCount"`
	Results     []itunesTrack `json:"results"`
}

type itunesTrack struct {
	WrapperType     string `json:"wrapperType"`
	TrackID         int64  `json:"trackId"`
	TrackName       string `json:"trackName"`
	ArtistName      string `json:"artistName"`
	CollectionName  string `json:"collectionName"`
	TrackTimeMillis int    `json:"trackTimeMillis"`
	ReleaseDate     string `json:"releaseDate"`
	TrackViewURL    string `json:"trackViewUrl"`
	ArtworkURL100   string `json:"artworkUrl100"`
}
