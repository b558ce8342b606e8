package services

import (
	"context"
	"regexp"
	"strings"

	"tracklink/internal/models"
)

// defaultSearchLimit is the number of candidates requested from each
// platform's search endpoint.
const defaultSearchLimit = 5

// PlatformService defines the interface for music platform search clients.
type PlatformService interface {
	// GetPlatformName returns the name of this platform
	GetPlatformName() string

	// ParseURL extracts track information from a platform URL without any
	// network call
	ParseURL(url string) (*models.Candidate, error)

	// GetTrackByID fetches track information using the platform-specific ID
	GetTrackByID(ctx context.Context, trackID string) (*models.Candidate, error)

	// Search searches the platform catalog for candidates matching the
	// reference track. Failures are absorbed: they are logged and an empty
	// slice returned, never an error. Missing credentials yield an empty
	// slice as well.
	Search(ctx context.Context, base models.BaseTrack, limit int) []models.Candidate

	// BuildURL constructs a platform URL from a track ID
	BuildURL(trackID string) string

	// Health checks if the platform service is usable
	Health(ctx context.Context) error
}

// URLPattern represents a URL pattern for parsing platform URLs
type URLPattern struct {
	Regex        *regexp.Regexp
	Platform     string
	TrackIDIndex int // capture group index of the track ID
}

// urlPatterns maps recognized streaming URLs to their platform and track ID.
// Order matters: the first matching pattern wins.
var urlPatterns = []URLPattern{
	{
		Regex:        regexp.MustCompile(`(?:https?://)?(?:open\.)?spotify\.com/track/([a-zA-Z0-9]+)`),
		Platform:     models.PlatformSpotify,
		TrackIDIndex: 1,
	},
	{
		Regex:        regexp.MustCompile(`(?:https?://)?(?:music|itunes)\.apple\.com/[a-z]{2}/(?:album|song)/(?:[^/]+/)?(\d+)`),
		Platform:     models.PlatformAppleMusic,
		TrackIDIndex: 1,
	},
	{
		Regex:        regexp.MustCompile(`(?:https?://)?(?:www\.|music\.)?youtube\.com/watch\?(?:[^#]*&)?v=([a-zA-Z0-9_-]{6,})`),
		Platform:     models.PlatformYouTube,
		TrackIDIndex: 1,
	},
	{
		Regex:        regexp.MustCompile(`(?:https?://)?youtu\.be/([a-zA-Z0-9_-]{6,})`),
		Platform:     models.PlatformYouTube,
		TrackIDIndex: 1,
	},
	{
		Regex:        regexp.MustCompile(`(?:https?://)?(?:www\.)?soundcloud\.com/([a-zA-Z0-9_-]+/[a-zA-Z0-9_-]+)`),
		Platform:     models.PlatformSoundCloud,
		TrackIDIndex: 1,
	},
	{
		Regex:        regexp.MustCompile(`(?:https?://)?(?:www\.)?(?:listen\.)?tidal\.com/(?:browse/)?track/(\d+)`),
		Platform:     models.PlatformTidal,
		TrackIDIndex: 1,
	},
	{
		Regex:        regexp.MustCompile(`(?:https?://)?(?:www\.)?deezer\.com/(?:[a-z]{2}/)?track/(\d+)`),
		Platform:     models.PlatformDeezer,
		TrackIDIndex: 1,
	},
}

// ParsePlatformURL attempts to parse a URL and determine which platform it
// belongs to.
func ParsePlatformURL(url string) (platform string, trackID string, err error) {
	for _, pattern := range urlPatterns {
		matches := pattern.Regex.FindStringSubmatch(url)
		if len(matches) > pattern.TrackIDIndex {
			return pattern.Platform, matches[pattern.TrackIDIndex], nil
		}
	}

	return "", "", &PlatformError{
		Platform:  "unknown",
		Operation: "parse_url",
		Message:   "unsupported platform URL",
		URL:       url,
	}
}

// searchText builds the free-text search query "{artist} {title}" used when
// no ISRC is available.
func searchText(base models.BaseTrack) string {
	return strings.TrimSpace(strings.TrimSpace(base.PrimaryArtist()) + " " + strings.TrimSpace(base.Title))
}

// PlatformError represents an error from a platform service
type PlatformError struct {
	Platform  string
	Operation string
	Message   string
	URL       string
	Err       error
}

func (e *PlatformError) Error() string {
	msg := e.Platform + " " + e.Operation + " failed"
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.URL != "" {
		msg += " (URL: " + e.URL + ")"
	}
	if e.Err != nil {
		msg += " - " + e.Err.Error()
	}
	return msg
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}
