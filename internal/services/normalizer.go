package services

import (
	"errors"
	"regexp"
	"strings"
)

// ErrEmptyInput is returned when a resolution request carries no usable
// input. Surfaced to callers as a 400, never retried.
var ErrEmptyInput = errors.New("empty input")

// InputKind classifies a raw resolution request.
type InputKind string

const (
	InputKindURL      InputKind = "url"
	InputKindISRC     InputKind = "isrc"
	InputKindFreeText InputKind = "free_text"
)

// TrackQuery is the normalized form of a raw resolution request.
type TrackQuery struct {
	RawInput   string    `json:"raw_input"`
	Kind       InputKind `json:"kind"`
	ArtistHint string    `json:"artist_hint,omitempty"`
	TitleHint  string    `json:"title_hint,omitempty"`
}

// QueryHints carries optional caller-supplied context for free-text input.
type QueryHints struct {
	Artist string
	Title  string
}

// streamingDomains is the fixed list of domains recognized as streaming
// platform URLs. Substring match, no network lookups.
var streamingDomains = []string{
	"spotify.com",
	"music.apple.com",
	"itunes.apple.com",
	"youtube.com",
	"youtu.be",
	"tidal.com",
	"soundcloud.com",
	"deezer.com",
}

// isrcPattern matches a bare ISRC token: country code, registrant code,
// year, designation. Hyphenated forms are normalized before matching.
var isrcPattern = regexp.MustCompile(`^[A-Za-z]{2}[A-Za-z0-9]{3}[0-9]{7}$`)

// NormalizeQuery classifies and cleans a raw request into a TrackQuery.
// Fails only on empty or whitespace input.
func NormalizeQuery(raw string, hints QueryHints) (TrackQuery, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TrackQuery{}, ErrEmptyInput
	}

	query := TrackQuery{
		RawInput:   raw,
		ArtistHint: strings.TrimSpace(hints.Artist),
		TitleHint:  strings.TrimSpace(hints.Title),
	}

	switch {
	case isStreamingURL(raw):
		query.Kind = InputKindURL
	case IsISRC(raw):
		query.Kind = InputKindISRC
		query.RawInput = CanonicalISRC(raw)
	default:
		query.Kind = InputKindFreeText
		if query.ArtistHint == "" && query.TitleHint == "" {
			artist, title := SplitVideoTitle(raw, "")
			if artist != "" && title != "" {
				query.ArtistHint = artist
				query.TitleHint = title
			}
		}
	}

	return query, nil
}

func isStreamingURL(raw string) bool {
	lower := strings.ToLower(raw)
	for _, domain := range streamingDomains {
		if strings.Contains(lower, domain) {
			return true
		}
	}
	return false
}

// IsISRC reports whether the string is a well-formed ISRC token.
func IsISRC(s string) bool {
	return isrcPattern.MatchString(CanonicalISRC(s))
}

// CanonicalISRC uppercases an ISRC and strips the optional hyphens.
func CanonicalISRC(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", ""))
}
