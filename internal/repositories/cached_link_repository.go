package repositories

import (
	"context"
	"log/slog"
	"time"

	"tracklink/internal/cache"
	"tracklink/internal/models"
)

// cachedLinkRepository wraps a LinkRepository with a read-through cache for
// the lookup keys the resolution hot path hits.
type cachedLinkRepository struct {
	repository LinkRepository
	cache      cache.Cache
}

// NewCachedLinkRepository creates a new cached link repository
func NewCachedLinkRepository(repository LinkRepository, c cache.Cache) LinkRepository {
	return &cachedLinkRepository{
		repository: repository,
		cache:      c,
	}
}

// Cache key generators
func linkSlugKey(slug string) string { return "link:slug:" + slug }
func linkISRCKey(isrc string) string { return "link:isrc:" + isrc }
func linkIdentityKey(title, artist string) string {
	return "link:identity:" + models.NormalizeIdentity(artist) + "|" + models.NormalizeIdentity(title)
}

const linkCacheTTL = 1 * time.Hour

// FindByISRC checks cache first, then repository
func (r *cachedLinkRepository) FindByISRC(ctx context.Context, isrc string) (*models.SmartLink, error) {
	if isrc == "" {
		return nil, nil
	}

	var cached models.SmartLink
	if cache.GetJSON(ctx, r.cache, linkISRCKey(isrc), &cached) {
		return &cached, nil
	}

	link, err := r.repository.FindByISRC(ctx, isrc)
	if err != nil {
		return nil, err
	}
	r.cacheLink(ctx, link)
	return link, nil
}

// FindByTitleArtist checks cache first, then repository
func (r *cachedLinkRepository) FindByTitleArtist(ctx context.Context, title, artist string) (*models.SmartLink, error) {
	var cached models.SmartLink
	if cache.GetJSON(ctx, r.cache, linkIdentityKey(title, artist), &cached) {
		return &cached, nil
	}

	link, err := r.repository.FindByTitleArtist(ctx, title, artist)
	if err != nil {
		return nil, err
	}
	r.cacheLink(ctx, link)
	return link, nil
}

// FindBySlug checks cache first, then repository
func (r *cachedLinkRepository) FindBySlug(ctx context.Context, slug string) (*models.SmartLink, error) {
	var cached models.SmartLink
	if cache.GetJSON(ctx, r.cache, linkSlugKey(slug), &cached) {
		return &cached, nil
	}

	link, err := r.repository.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	r.cacheLink(ctx, link)
	return link, nil
}

// FindByPlatformID passes through; platform ID lookups only happen once per
// resolution and the identity keys cover the hot path
func (r *cachedLinkRepository) FindByPlatformID(ctx context.Context, platform, externalID string) (*models.SmartLink, error) {
	return r.repository.FindByPlatformID(ctx, platform, externalID)
}

// Save writes through and refreshes the cache with the authoritative record
func (r *cachedLinkRepository) Save(ctx context.Context, link *models.SmartLink) (*models.SmartLink, error) {
	saved, err := r.repository.Save(ctx, link)
	if err != nil {
		return nil, err
	}

	r.invalidateLink(ctx, saved)
	r.cacheLink(ctx, saved)
	return saved, nil
}

// IncrementClicks invalidates the slug entry so the counter stays fresh
func (r *cachedLinkRepository) IncrementClicks(ctx context.Context, slug string) error {
	if err := r.repository.IncrementClicks(ctx, slug); err != nil {
		return err
	}
	if err := r.cache.Delete(ctx, linkSlugKey(slug)); err != nil {
		slog.Debug("Failed to invalidate slug cache", "slug", slug, "error", err)
	}
	return nil
}

// Count passes through
func (r *cachedLinkRepository) Count(ctx context.Context) (int64, error) {
	return r.repository.Count(ctx)
}

func (r *cachedLinkRepository) cacheLink(ctx context.Context, link *models.SmartLink) {
	if link == nil {
		return
	}
	for _, key := range r.linkKeys(link) {
		if err := cache.SetJSON(ctx, r.cache, key, link, linkCacheTTL); err != nil {
			slog.Debug("Failed to cache link", "key", key, "error", err)
		}
	}
}

func (r *cachedLinkRepository) invalidateLink(ctx context.Context, link *models.SmartLink) {
	for _, key := range r.linkKeys(link) {
		if err := r.cache.Delete(ctx, key); err != nil {
			slog.Debug("Failed to invalidate link cache", "key", key, "error", err)
		}
	}
}

func (r *cachedLinkRepository) linkKeys(link *models.SmartLink) []string {
	keys := []string{
		linkSlugKey(link.Slug),
		linkIdentityKey(link.Title, link.Artist),
	}
	if link.ISRC != "" {
		keys = append(keys, linkISRCKey(link.ISRC))
	}
	return keys
}
