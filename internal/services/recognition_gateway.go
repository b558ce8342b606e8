package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"tracklink/internal/models"
)

// RecognitionKind classifies recognition gateway failures.
type RecognitionKind string

const (
	RecognitionUnavailable RecognitionKind = "unavailable"
	RecognitionNoMatch     RecognitionKind = "no_match"
)

// RecognitionError is returned when the recognition provider could not
// produce a result. The coordinator always has a fallback path, so these are
// absorbed upstream, never surfaced.
type RecognitionError struct {
	Kind RecognitionKind
	Err  error
}

func (e *RecognitionError) Error() string {
	msg := "recognition " + string(e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RecognitionError) Unwrap() error {
	return e.Err
}

// RecognitionResult is the provider's best-effort canonical description of a
// track plus whatever per-platform links it already knows.
type RecognitionResult struct {
	Track models.BaseTrack  `json:"track"`
	Links map[string]string `json:"links"` // platform -> destination URL
}

// HasLinks reports whether the provider knew at least one platform link.
func (r *RecognitionResult) HasLinks() bool {
	return r != nil && len(r.Links) > 0
}

// RecognitionGateway wraps the external track recognition provider.
type RecognitionGateway interface {
	RecognizeByURL(ctx context.Context, url string) (*RecognitionResult, error)
	RecognizeByText(ctx context.Context, query string) (*RecognitionResult, error)
}

// recognitionGateway is the HTTP implementation.
type recognitionGateway struct {
	client  *resty.Client
	baseURL string
}

// requestPlatforms is the fixed platform list sent with each recognition
// call. The provider caps a request at 5 platforms, so the list covers the
// pass-through platforms (which have no search fallback) plus the two
// highest-priority searchable ones.
var requestPlatforms = []string{
	models.PlatformSpotify,
	models.PlatformAppleMusic,
	models.PlatformTidal,
	models.PlatformDeezer,
	models.PlatformAmazonMusic,
}

// NewRecognitionGateway creates a gateway against the configured provider.
// The timeout is a hard deadline on each recognition call.
func NewRecognitionGateway(baseURL, token string, timeout time.Duration) RecognitionGateway {
	client := resty.New().
		SetTimeout(timeout).
		SetAuthToken(token)

	return &recognitionGateway{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// RecognizeByURL asks the provider to identify a track from a source URL.
func (g *recognitionGateway) RecognizeByURL(ctx context.Context, url string) (*RecognitionResult, error) {
	return g.recognize(ctx, map[string]any{
		"url":       url,
		"platforms": requestPlatforms,
	})
}

// RecognizeByText asks the provider to identify a track from free text or an
// ISRC.
func (g *recognitionGateway) RecognizeByText(ctx context.Context, query string) (*RecognitionResult, error) {
	return g.recognize(ctx, map[string]any{
		"query":     query,
		"platforms": requestPlatforms,
	})
}

func (g *recognitionGateway) recognize(ctx context.Context, body map[string]any) (*RecognitionResult, error) {
	var payload recognitionResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&payload).
		Post(g.baseURL + "/v1/recognize")

	if err != nil {
		slog.Warn("Recognition provider unreachable", "error", err)
		return nil, &RecognitionError{Kind: RecognitionUnavailable, Err: err}
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, &RecognitionError{Kind: RecognitionNoMatch}
	}
	if resp.StatusCode() != http.StatusOK {
		slog.Warn("Recognition provider returned error",
			"status", resp.StatusCode(),
			"body", truncate(resp.String(), 200))
		return nil, &RecognitionError{
			Kind: RecognitionUnavailable,
			Err:  fmt.Errorf("provider returned status %d", resp.StatusCode()),
		}
	}

	if payload.Title == "" && len(payload.Matches) == 0 {
		return nil, &RecognitionError{Kind: RecognitionNoMatch}
	}

	result := &RecognitionResult{
		Track: models.BaseTrack{
			Title:           payload.Title,
			Artist:          payload.Artist,
			Artists:         payload.Artists,
			ISRC:            payload.ISRC,
			DurationSeconds: payload.DurationSeconds,
			Album:           payload.Album,
			ReleaseDate:     payload.ReleaseDate,
			Label:           payload.Label,
			CoverArtURL:     payload.CoverArtURL,
		},
		Links: mapToSmartLinks(&payload),
	}
	if result.Track.Artist == "" && len(result.Track.Artists) > 0 {
		result.Track.Artist = result.Track.Artists[0]
	}

	return result, nil
}

// mapToSmartLinks extracts per-platform links from the provider response
// with fixed precedence per platform:
//  1. the URL carried by a dedicated per-platform match entry,
//  2. the generic external_urls object,
//  3. a canonical URL constructed from a bare platform ID (match entry
//     or external_ids),
//  4. unset.
//
// Provider-supplied URLs always beat constructed ones, so a match entry
// carrying only an ID cannot shadow an external_urls value for the same
// platform. Each step only fires when the previous produced nothing for
// that platform; a found value is never overwritten.
func mapToSmartLinks(payload *recognitionResponse) map[string]string {
	links := make(map[string]string)

	for _, match := range payload.Matches {
		platform := normalizePlatformName(match.Platform)
		if platform == "" || match.URL == "" || links[platform] != "" {
			continue
		}
		links[platform] = match.URL
	}

	for name, url := range payload.ExternalURLs {
		platform := normalizePlatformName(name)
		if platform == "" || url == "" || links[platform] != "" {
			continue
		}
		links[platform] = url
	}

	for _, match := range payload.Matches {
		platform := normalizePlatformName(match.Platform)
		if platform == "" || match.ID == "" || links[platform] != "" {
			continue
		}
		if url := canonicalPlatformURL(platform, match.ID); url != "" {
			links[platform] = url
		}
	}

	for name, id := range payload.ExternalIDs {
		platform := normalizePlatformName(name)
		if platform == "" || id == "" || links[platform] != "" {
			continue
		}
		if url := canonicalPlatformURL(platform, id); url != "" {
			links[platform] = url
		}
	}

	return links
}

// canonicalPlatformURL constructs a destination URL from a bare platform ID.
// Platforms without a deterministic URL scheme return "".
func canonicalPlatformURL(platform, id string) string {
	switch platform {
	case models.PlatformSpotify:
		return "https://open.spotify.com/track/" + id
	case models.PlatformAppleMusic:
		return "https://music.apple.com/us/song/" + id
	case models.PlatformYouTube:
		return "https://www.youtube.com/watch?v=" + id
	case models.PlatformYouTubeMusic:
		return "https://music.youtube.com/watch?v=" + id
	case models.PlatformTidal:
		return "https://tidal.com/browse/track/" + id
	case models.PlatformDeezer:
		return "https://www.deezer.com/track/" + id
	case models.PlatformAmazonMusic:
		return "https://music.amazon.com/tracks/" + id
	}
	return ""
}

// normalizePlatformName maps the provider's platform naming variants onto
// our identifiers.
func normalizePlatformName(name string) string {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "-", "_")) {
	case "spotify":
		return models.PlatformSpotify
	case "apple_music", "applemusic", "itunes":
		return models.PlatformAppleMusic
	case "youtube":
		return models.PlatformYouTube
	case "youtube_music", "youtubemusic":
		return models.PlatformYouTubeMusic
	case "soundcloud":
		return models.PlatformSoundCloud
	case "tidal":
		return models.PlatformTidal
	case "deezer":
		return models.PlatformDeezer
	case "amazon_music", "amazonmusic", "amazon":
		return models.PlatformAmazonMusic
	}
	return ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// recognitionResponse is the provider-specific response shape. Nothing past
// this adapter sees these field names.
type recognitionResponse struct {
	Title           string   `json:"title"`
	Artist          string   `json:"artist"`
	Artists         []string `json:"artists"`
	ISRC            string   `json:"isrc"`
	DurationSeconds int      `json:"duration_seconds"`
	Album           string   `json:"album"`
	ReleaseDate     string   `json:"release_date"`
	Label           string   `json:"label"`
	CoverArtURL     string   `json:"cover_art_url"`

	Matches      []recognitionMatch `json:"matches"`
	ExternalURLs map[string]string  `json:"external_urls"`
	ExternalIDs  map[string]string  `json:"external_ids"`
}

type recognitionMatch struct {
	Platform string `json:"platform"`
	ID       string `json:"id"`
	URL      string `json:"url"`
}
