package services

import (
	"strings"

	"tracklink/internal/models"
)

// redirectPriority is the fixed order unauthenticated visitor redirects walk
// when picking a destination. The order is a product decision (platform
// popularity), not derived from confidence scores, and must stay fixed so
// previously shared links keep resolving the same way.
var redirectPriority = []string{
	models.PlatformSpotify,
	models.PlatformAppleMusic,
	models.PlatformYouTube,
	models.PlatformYouTubeMusic,
	models.PlatformTidal,
	models.PlatformSoundCloud,
	models.PlatformDeezer,
	models.PlatformAmazonMusic,
}

// RedirectURL picks the destination for a visitor redirect: the first
// populated platform URL in priority order, else the canonical short-link
// path built from the slug, else "".
func RedirectURL(link *models.SmartLink, baseURL string) string {
	if link == nil {
		return ""
	}

	for _, platform := range redirectPriority {
		if url := link.PlatformURL(platform); url != "" {
			return url
		}
	}

	if link.Slug != "" {
		return strings.TrimRight(baseURL, "/") + "/s/" + link.Slug
	}

	return ""
}
