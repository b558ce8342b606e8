package testutil

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"tracklink/internal/models"
)

// LinkBuilder provides a fluent interface for creating test smart links
type LinkBuilder struct {
	link *models.SmartLink
}

// NewLinkBuilder creates a new link builder with default values
func NewLinkBuilder() *LinkBuilder {
	link := models.NewSmartLink("Test Track", "Test Artist")
	link.Slug = "test-track"
	return &LinkBuilder{link: link}
}

// WithID sets the link ID
func (b *LinkBuilder) WithID(id string) *LinkBuilder {
	objID, _ := primitive.ObjectIDFromHex(id)
	b.link.ID = objID
	return b
}

// WithTitle sets the title
func (b *LinkBuilder) WithTitle(title string) *LinkBuilder {
	b.link.Title = title
	return b
}

// WithArtist sets the artist
func (b *LinkBuilder) WithArtist(artist string) *LinkBuilder {
	b.link.Artist = artist
	return b
}

// WithISRC sets the ISRC
func (b *LinkBuilder) WithISRC(isrc string) *LinkBuilder {
	b.link.ISRC = isrc
	return b
}

// WithSlug sets the slug
func (b *LinkBuilder) WithSlug(slug string) *LinkBuilder {
	b.link.Slug = slug
	return b
}

// WithPlatformLink adds a platform destination
func (b *LinkBuilder) WithPlatformLink(platform, externalID, url string, confidence float64) *LinkBuilder {
	b.link.SetPlatformLink(platform, externalID, url, confidence)
	return b
}

// NeedingReview forces the manual review flag regardless of confidences
func (b *LinkBuilder) NeedingReview() *LinkBuilder {
	b.link.NeedsManualReview = true
	return b
}

// Build returns the constructed link
func (b *LinkBuilder) Build() *models.SmartLink {
	return b.link
}

// CandidateBuilder provides a fluent interface for creating test candidates
type CandidateBuilder struct {
	candidate models.Candidate
}

// NewCandidateBuilder creates a candidate builder with default values
func NewCandidateBuilder(platform string) *CandidateBuilder {
	candidate := models.Candidate{
		Platform:   platform,
		ExternalID: "ext-1",
		URL:        "https://example.com/track/ext-1",
	}
	candidate.Title = "Test Track"
	candidate.Artist = "Test Artist"
	candidate.Artists = []string{"Test Artist"}
	return &CandidateBuilder{candidate: candidate}
}

// WithTitle sets the title
func (b *CandidateBuilder) WithTitle(title string) *CandidateBuilder {
	b.candidate.Title = title
	return b
}

// WithArtist sets the primary artist (and the artist list)
func (b *CandidateBuilder) WithArtist(artist string) *CandidateBuilder {
	b.candidate.Artist = artist
	b.candidate.Artists = []string{artist}
	return b
}

// WithArtists sets the full artist list
func (b *CandidateBuilder) WithArtists(artists ...string) *CandidateBuilder {
	b.candidate.Artists = artists
	if len(artists) > 0 {
		b.candidate.Artist = artists[0]
	}
	return b
}

// WithISRC sets the ISRC
func (b *CandidateBuilder) WithISRC(isrc string) *CandidateBuilder {
	b.candidate.ISRC = isrc
	return b
}

// WithDuration sets the duration in seconds
func (b *CandidateBuilder) WithDuration(seconds int) *CandidateBuilder {
	b.candidate.DurationSeconds = seconds
	return b
}

// WithAlbum sets the album
func (b *CandidateBuilder) WithAlbum(album string) *CandidateBuilder {
	b.candidate.Album = album
	return b
}

// WithLabel sets the label
func (b *CandidateBuilder) WithLabel(label string) *CandidateBuilder {
	b.candidate.Label = label
	return b
}

// WithReleaseDate sets the release date
func (b *CandidateBuilder) WithReleaseDate(date string) *CandidateBuilder {
	b.candidate.ReleaseDate = date
	return b
}

// WithURL sets the platform URL
func (b *CandidateBuilder) WithURL(url string) *CandidateBuilder {
	b.candidate.URL = url
	return b
}

// WithExternalID sets the platform-specific ID
func (b *CandidateBuilder) WithExternalID(id string) *CandidateBuilder {
	b.candidate.ExternalID = id
	return b
}

// Build returns the constructed candidate
func (b *CandidateBuilder) Build() models.Candidate {
	return b.candidate
}
