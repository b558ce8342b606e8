package models

import (
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const CurrentSchemaVersion = 1

// MatchThreshold is the minimum match confidence below which a link is
// flagged for manual review.
const MatchThreshold = 0.6

// Platform identifiers used throughout the resolution engine.
const (
	PlatformSpotify      = "spotify"
	PlatformAppleMusic   = "apple_music"
	PlatformYouTube      = "youtube"
	PlatformYouTubeMusic = "youtube_music"
	PlatformSoundCloud   = "soundcloud"
	PlatformTidal        = "tidal"
	PlatformDeezer       = "deezer"
	PlatformAmazonMusic  = "amazon_music"
)

// AllPlatforms lists every platform a smart link can carry.
var AllPlatforms = []string{
	PlatformSpotify,
	PlatformAppleMusic,
	PlatformYouTube,
	PlatformYouTubeMusic,
	PlatformSoundCloud,
	PlatformTidal,
	PlatformDeezer,
	PlatformAmazonMusic,
}

// SmartLink is the persisted record mapping one logical track to a set of
// per-platform destination URLs plus a shareable slug.
type SmartLink struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SchemaVersion int                `bson:"schema_version" json:"schema_version"`

	// Core identity
	ISRC   string `bson:"isrc,omitempty" json:"isrc,omitempty"`
	Title  string `bson:"title" json:"title"`
	Artist string `bson:"artist" json:"artist"`
	Album  string `bson:"album,omitempty" json:"album,omitempty"`
	Slug   string `bson:"slug" json:"slug"`

	// Platform links (embedded, at most one per platform)
	PlatformLinks []PlatformLink `bson:"platform_links" json:"platform_links"`

	// Resolution outcome
	MatchConfidence   float64 `bson:"match_confidence" json:"match_confidence"`
	NeedsManualReview bool    `bson:"needs_manual_review" json:"needs_manual_review"`

	// Additional metadata
	Metadata LinkMetadata `bson:"metadata" json:"metadata"`

	TotalClicks int64 `bson:"total_clicks" json:"total_clicks"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// PlatformLink is one platform's destination for a smart link.
type PlatformLink struct {
	Platform   string  `bson:"platform" json:"platform"`
	ExternalID string  `bson:"external_id,omitempty" json:"external_id,omitempty"`
	URL        string  `bson:"url" json:"url"`
	Confidence float64 `bson:"confidence" json:"confidence"` // match confidence (0-1)
}

// LinkMetadata carries descriptive track information that plays no part in
// identity lookups.
type LinkMetadata struct {
	DurationSeconds int    `bson:"duration_seconds,omitempty" json:"duration_seconds,omitempty"`
	ReleaseDate     string `bson:"release_date,omitempty" json:"release_date,omitempty"`
	Label           string `bson:"label,omitempty" json:"label,omitempty"`
	CoverArtURL     string `bson:"cover_art_url,omitempty" json:"cover_art_url,omitempty"`
}

// NewSmartLink creates a new SmartLink with default values
func NewSmartLink(title, artist string) *SmartLink {
	now := time.Now()
	return &SmartLink{
		SchemaVersion: CurrentSchemaVersion,
		Title:         title,
		Artist:        artist,
		PlatformLinks: make([]PlatformLink, 0),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// SetPlatformLink adds or replaces the link for a platform and recomputes the
// aggregate confidence and review flag.
func (l *SmartLink) SetPlatformLink(platform, externalID, url string, confidence float64) {
	now := time.Now()
	for i, link := range l.PlatformLinks {
		if link.Platform == platform {
			l.PlatformLinks[i].ExternalID = externalID
			l.PlatformLinks[i].URL = url
			l.PlatformLinks[i].Confidence = confidence
			l.UpdatedAt = now
			l.recomputeConfidence()
			return
		}
	}

	l.PlatformLinks = append(l.PlatformLinks, PlatformLink{
		Platform:   platform,
		ExternalID: externalID,
		URL:        url,
		Confidence: confidence,
	})
	l.UpdatedAt = now
	l.recomputeConfidence()
}

// GetPlatformLink returns the link for a specific platform, or nil.
func (l *SmartLink) GetPlatformLink(platform string) *PlatformLink {
	for i := range l.PlatformLinks {
		if l.PlatformLinks[i].Platform == platform {
			return &l.PlatformLinks[i]
		}
	}
	return nil
}

// PlatformURL returns the destination URL for a platform, or "".
func (l *SmartLink) PlatformURL(platform string) string {
	if link := l.GetPlatformLink(platform); link != nil {
		return link.URL
	}
	return ""
}

// HasPlatform checks if the link has a destination for the platform.
func (l *SmartLink) HasPlatform(platform string) bool {
	return l.GetPlatformLink(platform) != nil
}

// recomputeConfidence maintains the invariant matchConfidence = max of the
// per-platform confidences, and the review flag derived from it.
func (l *SmartLink) recomputeConfidence() {
	max := 0.0
	for _, link := range l.PlatformLinks {
		if link.Confidence > max {
			max = link.Confidence
		}
	}
	l.MatchConfidence = max
	l.NeedsManualReview = max < MatchThreshold
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL slug from a title: lowercase, runs of
// non-alphanumerics collapsed to single hyphens.
func Slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = slugPattern.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "track"
	}
	return slug
}

// NormalizeIdentity lowercases and collapses whitespace for (artist, title)
// identity lookups.
func NormalizeIdentity(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
