package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tracklink/internal/models"
)

func TestMapToSmartLinksPrecedence(t *testing.T) {
	payload := &recognitionResponse{
		Matches: []recognitionMatch{
			{Platform: "spotify", URL: "https://open.spotify.com/track/from-match"},
			{Platform: "tidal", ID: "111"},
			{Platform: "youtube", ID: "bare-id"},
		},
		ExternalURLs: map[string]string{
			"spotify": "https://open.spotify.com/track/from-external-url",
			"deezer":  "https://www.deezer.com/track/222",
			"youtube": "https://youtu.be/from-external-url",
		},
		ExternalIDs: map[string]string{
			"spotify":     "from-external-id",
			"deezer":      "999",
			"apple-music": "333",
		},
	}

	links := mapToSmartLinks(payload)

	// a match carrying a URL wins over everything else
	assert.Equal(t, "https://open.spotify.com/track/from-match", links[models.PlatformSpotify])
	// a match carrying only an ID loses to a provider-supplied external URL
	assert.Equal(t, "https://youtu.be/from-external-url", links[models.PlatformYouTube])
	// with no provider URL, a bare match ID produces the canonical URL
	assert.Equal(t, "https://tidal.com/browse/track/111", links[models.PlatformTidal])
	// external_urls win over external_ids
	assert.Equal(t, "https://www.deezer.com/track/222", links[models.PlatformDeezer])
	// external_ids fill in what nothing else covered
	assert.Equal(t, "https://music.apple.com/us/song/333", links[models.PlatformAppleMusic])
	assert.Len(t, links, 5)
}

func TestMapToSmartLinksNeverOverwrites(t *testing.T) {
	payload := &recognitionResponse{
		Matches: []recognitionMatch{
			{Platform: "spotify", URL: "https://open.spotify.com/track/first"},
			{Platform: "spotify", URL: "https://open.spotify.com/track/second"},
		},
	}

	links := mapToSmartLinks(payload)
	assert.Equal(t, "https://open.spotify.com/track/first", links[models.PlatformSpotify])
}

func TestMapToSmartLinksSkipsUnknownPlatforms(t *testing.T) {
	payload := &recognitionResponse{
		Matches: []recognitionMatch{
			{Platform: "napster", URL: "https://napster.example/track/1"},
			{Platform: "", URL: "https://nowhere.example"},
		},
		ExternalURLs: map[string]string{"pandora": "https://pandora.example/t/1"},
	}

	assert.Empty(t, mapToSmartLinks(payload))
}

func TestNormalizePlatformName(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"spotify", models.PlatformSpotify},
		{"Spotify", models.PlatformSpotify},
		{"apple-music", models.PlatformAppleMusic},
		{"appleMusic", models.PlatformAppleMusic},
		{"itunes", models.PlatformAppleMusic},
		{"youtube_music", models.PlatformYouTubeMusic},
		{" tidal ", models.PlatformTidal},
		{"amazon", models.PlatformAmazonMusic},
		{"myspace", ""},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, normalizePlatformName(tc.input), "input %q", tc.input)
	}
}

func TestCanonicalPlatformURL(t *testing.T) {
	assert.Equal(t, "https://open.spotify.com/track/abc", canonicalPlatformURL(models.PlatformSpotify, "abc"))
	assert.Equal(t, "https://music.youtube.com/watch?v=abc", canonicalPlatformURL(models.PlatformYouTubeMusic, "abc"))
	// SoundCloud IDs have no deterministic public URL
	assert.Equal(t, "", canonicalPlatformURL(models.PlatformSoundCloud, "abc"))
}
