package models

// BaseTrack is the reference identity of a track once partially resolved,
// e.g. from platform metadata or the recognition provider.
type BaseTrack struct {
	Title           string   `json:"title"`
	Artist          string   `json:"artist"`            // primary artist
	Artists         []string `json:"artists,omitempty"` // ordered, may include featured artists
	ISRC            string   `json:"isrc,omitempty"`
	DurationSeconds int      `json:"duration_seconds,omitempty"`
	Album           string   `json:"album,omitempty"`
	ReleaseDate     string   `json:"release_date,omitempty"` // ISO date, year precision acceptable
	Label           string   `json:"label,omitempty"`
	CoverArtURL     string   `json:"cover_art_url,omitempty"`
}

// PrimaryArtist returns the primary artist, falling back to the first entry
// of the artist list.
func (t BaseTrack) PrimaryArtist() string {
	if t.Artist != "" {
		return t.Artist
	}
	if len(t.Artists) > 0 {
		return t.Artists[0]
	}
	return ""
}

// Candidate is one platform's search result before scoring. Ephemeral; never
// persisted standalone.
type Candidate struct {
	BaseTrack

	Platform   string `json:"platform"`
	ExternalID string `json:"external_id"`
	URL        string `json:"url"`
}

// ProviderResult is the best-scoring candidate for one platform.
type ProviderResult struct {
	Platform   string  `json:"platform"`
	ExternalID string  `json:"external_id"`
	URL        string  `json:"url"`
	Confidence float64 `json:"confidence"`
}
