package repositories

import (
	"context"

	"tracklink/internal/models"
)

// LinkRepository defines the interface for smart link persistence. Find
// operations return (nil, nil) when no record matches.
type LinkRepository interface {
	// FindByISRC looks up a link by its canonical ISRC
	FindByISRC(ctx context.Context, isrc string) (*models.SmartLink, error)

	// FindByTitleArtist looks up a link by exact normalized (title, artist)
	FindByTitleArtist(ctx context.Context, title, artist string) (*models.SmartLink, error)

	// FindBySlug looks up a link by its slug
	FindBySlug(ctx context.Context, slug string) (*models.SmartLink, error)

	// FindByPlatformID looks up a link carrying a platform-specific track ID
	FindByPlatformID(ctx context.Context, platform, externalID string) (*models.SmartLink, error)

	// Save inserts a new link or replaces an existing one. The returned
	// record is authoritative: when a concurrent resolution won the insert
	// race, Save re-reads and returns the winner instead of the argument.
	Save(ctx context.Context, link *models.SmartLink) (*models.SmartLink, error)

	// IncrementClicks bumps the click counter for a slug
	IncrementClicks(ctx context.Context, slug string) error

	// Count returns the number of stored links
	Count(ctx context.Context) (int64, error)
}

// ConflictError is returned when a slug collision could not be resolved by
// regenerating the slug once.
type ConflictError struct {
	Slug string
	Err  error
}

func (e *ConflictError) Error() string {
	return "persistent slug conflict for '" + e.Slug + "': " + e.Err.Error()
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}
