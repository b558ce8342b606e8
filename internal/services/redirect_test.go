package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tracklink/internal/models"
)

func TestRedirectURLPriority(t *testing.T) {
	link := models.NewSmartLink("Midnight Drive", "Jane Doe")
	link.SetPlatformLink(models.PlatformTidal, "111", "https://tidal.com/browse/track/111", 0.9)
	link.SetPlatformLink(models.PlatformAppleMusic, "222", "https://music.apple.com/us/song/222", 0.7)

	// Apple Music outranks Tidal regardless of confidence
	assert.Equal(t, "https://music.apple.com/us/song/222", RedirectURL(link, "https://tl.example"))

	link.SetPlatformLink(models.PlatformSpotify, "333", "https://open.spotify.com/track/333", 0.6)
	assert.Equal(t, "https://open.spotify.com/track/333", RedirectURL(link, "https://tl.example"))
}

func TestRedirectURLSlugFallback(t *testing.T) {
	link := models.NewSmartLink("Midnight Drive", "Jane Doe")
	link.Slug = "midnight-drive"
	assert.Equal(t, "https://tl.example/s/midnight-drive", RedirectURL(link, "https://tl.example/"))
}

func TestRedirectURLEmpty(t *testing.T) {
	assert.Equal(t, "", RedirectURL(nil, "https://tl.example"))
	assert.Equal(t, "", RedirectURL(&models.SmartLink{}, "https://tl.example"))
}

func TestRedirectURLSkipsEmptyEntries(t *testing.T) {
	link := models.NewSmartLink("Midnight Drive", "Jane Doe")
	link.PlatformLinks = append(link.PlatformLinks, models.PlatformLink{
		Platform:   models.PlatformSpotify,
		ExternalID: "abc",
	})
	link.SetPlatformLink(models.PlatformDeezer, "444", "https://www.deezer.com/track/444", 0.8)

	// a platform entry without a URL never wins
	assert.Equal(t, "https://www.deezer.com/track/444", RedirectURL(link, "https://tl.example"))
}
