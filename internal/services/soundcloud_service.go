package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"tracklink/internal/models"
)

// soundcloudService implements PlatformService for SoundCloud using the
// client_id authenticated public search API.
type soundcloudService struct {
	client   *resty.Client
	limiter  *rate.Limiter
	clientID string
}

const soundcloudAPIURL = "https://api-v2.soundcloud.com"

// NewSoundCloudService creates a new SoundCloud service
func NewSoundCloudService(clientID string, timeout time.Duration) PlatformService {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)

	return &soundcloudService{
		client:   client,
		limiter:  rate.NewLimiter(rate.Limit(5), 5),
		clientID: clientID,
	}
}

// GetPlatformName returns the platform name
func (s *soundcloudService) GetPlatformName() string {
	return models.PlatformSoundCloud
}

// ParseURL extracts the permalink path from a SoundCloud URL
func (s *soundcloudService) ParseURL(url string) (*models.Candidate, error) {
	platform, path, err := ParsePlatformURL(url)
	if err != nil || platform != models.PlatformSoundCloud {
		return nil, &PlatformError{
			Platform:  models.PlatformSoundCloud,
			Operation: "parse_url",
			Message:   "invalid SoundCloud URL format",
			URL:       url,
		}
	}

	return &models.Candidate{
		Platform:   models.PlatformSoundCloud,
		ExternalID: path,
		URL:        "https://soundcloud.com/" + path,
	}, nil
}

// GetTrackByID resolves a permalink path via the resolve endpoint
func (s *soundcloudService) GetTrackByID(ctx context.Context, permalink string) (*models.Candidate, error) {
	if s.clientID == "" {
		return nil, &PlatformError{
			Platform:  models.PlatformSoundCloud,
			Operation: "get_track",
			Message:   "client ID not configured",
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var track soundcloudTrack
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"url":       "https://soundcloud.com/" + permalink,
			"client_id": s.clientID,
		}).
		SetResult(&track).
		Get(soundcloudAPIURL + "/resolve")

	if err != nil {
		return nil, &PlatformError{
			Platform:  models.PlatformSoundCloud,
			Operation: "get_track",
			Message:   "request failed",
			Err:       err,
		}
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, &PlatformError{
			Platform:  models.PlatformSoundCloud,
			Operation: "get_track",
			Message:   "track not found",
		}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &PlatformError{
			Platform:  models.PlatformSoundCloud,
			Operation: "get_track",
			Message:   fmt.Sprintf("API returned status %d", resp.StatusCode()),
		}
	}

	candidate := s.convertTrack(track)
	return &candidate, nil
}

// Search searches SoundCloud for candidates matching the reference track.
// SoundCloud has no ISRC search; free text only.
func (s *soundcloudService) Search(ctx context.Context, base models.BaseTrack, limit int) []models.Candidate {
	candidates, err := s.search(ctx, base, limit)
	if err != nil {
		slog.Warn("SoundCloud search failed",
			"title", base.Title,
			"artist", base.PrimaryArtist(),
			"error", err)
		return nil
	}
	return candidates
}

func (s *soundcloudService) search(ctx context.Context, base models.BaseTrack, limit int) ([]models.Candidate, error) {
	if s.clientID == "" {
		return nil, nil // not configured; valid empty outcome
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	query := searchText(base)
	if query == "" {
		return nil, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var result soundcloudSearchResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":         query,
			"limit":     strconv.Itoa(limit),
			"client_id": s.clientID,
		}).
		SetResult(&result).
		Get(soundcloudAPIURL + "/search/tracks")

	if err != nil {
		return nil, &PlatformError{
			Platform:  models.PlatformSoundCloud,
			Operation: "search",
			Message:   "request failed",
			Err:       err,
		}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &PlatformError{
			Platform:  models.PlatformSoundCloud,
			Operation: "search",
			Message:   fmt.Sprintf("API returned status %d", resp.StatusCode()),
		}
	}

	candidates := make([]models.Candidate, 0, len(result.Collection))
	for _, track := range result.Collection {
		candidates = append(candidates, s.convertTrack(track))
	}
	return candidates, nil
}

// BuildURL constructs a SoundCloud URL from a permalink path
func (s *soundcloudService) BuildURL(permalink string) string {
	return "https://soundcloud.com/" + permalink
}

// Health checks SoundCloud API health
func (s *soundcloudService) Health(ctx context.Context) error {
	if s.clientID == "" {
		return &PlatformError{
			Platform:  models.PlatformSoundCloud,
			Operation: "health",
			Message:   "client ID not configured",
		}
	}
	_, err := s.search(ctx, models.BaseTrack{Title: "test"}, 1)
	return err
}

// convertTrack converts a SoundCloud track to a Candidate
func (s *soundcloudService) convertTrack(track soundcloudTrack) models.Candidate {
	artist := track.Publisher.Artist
	if artist == "" {
		artist = track.User.Username
	}

	candidate := models.Candidate{
		Platform:   models.PlatformSoundCloud,
		ExternalID: strconv.FormatInt(track.ID, 10),
		URL:        track.PermalinkURL,
	}
	candidate.Title = track.Title
	candidate.Artist = artist
	candidate.Artists = []string{artist}
	candidate.ISRC = track.Publisher.ISRC
	candidate.Album = track.Publisher.AlbumTitle
	candidate.Label = track.LabelName
	candidate.DurationSeconds = int(track.Duration / 1000)
	if len(track.ReleaseDate) >= 10 {
		candidate.ReleaseDate = track.ReleaseDate[:10]
	}
	candidate.CoverArtURL = track.ArtworkURL

	return candidate
}

// SoundCloud API response structures
type soundcloudSearchResponse struct {
	Collection []soundcloudTrack `json:"collection"`
}

type soundcloudTrack struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	PermalinkURL string `json:"permalink_url"`
	Duration     int64  `json:"duration"` // milliseconds
	ReleaseDate  string `json:"release_date"`
	ArtworkURL   string `json:"artwork_url"`
	LabelName    string `json:"label_name"`
	User         struct {
		Username string `json:"username"`
	} `json:"user"`
	Publisher struct {
		Artist     string `json:"artist"`
		AlbumTitle string `json:"album_title"`
		ISRC       string `json:"isrc"`
	} `json:"publisher_metadata"`
}
