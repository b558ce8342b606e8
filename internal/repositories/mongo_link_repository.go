package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"tracklink/internal/models"
)

// mongoLinkRepository implements LinkRepository using MongoDB. Concurrency
// safety for the upsert rests on the store's unique slug index, not on
// application-level locking.
type mongoLinkRepository struct {
	collection *mongo.Collection
}

// NewMongoLinkRepository creates a new MongoDB-backed link repository
func NewMongoLinkRepository(db *models.Database) LinkRepository {
	return &mongoLinkRepository{
		collection: db.DB.Collection("smart_links"),
	}
}

// FindByISRC finds a link by its ISRC code
func (r *mongoLinkRepository) FindByISRC(ctx context.Context, isrc string) (*models.SmartLink, error) {
	if isrc == "" {
		return nil, nil
	}

	var link models.SmartLink
	err := r.collection.FindOne(ctx, bson.M{"isrc": isrc}).Decode(&link)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find link by ISRC: %w", err)
	}

	return &link, nil
}

// FindByTitleArtist finds a link by exact normalized (title, artist) match.
// When several records normalize to the same pair, the closest one by
// Jaro-Winkler similarity on "artist title" wins.
func (r *mongoLinkRepository) FindByTitleArtist(ctx context.Context, title, artist string) (*models.SmartLink, error) {
	if title == "" || artist == "" {
		return nil, nil
	}

	filter := bson.M{
		"title":  anchoredFold(title),
		"artist": anchoredFold(artist),
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find links by title/artist: %w", err)
	}
	defer cursor.Close(ctx)

	var links []*models.SmartLink
	for cursor.Next(ctx) {
		var link models.SmartLink
		if err := cursor.Decode(&link); err != nil {
			slog.Error("Failed to decode link", "error", err)
			continue
		}
		links = append(links, &link)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	switch len(links) {
	case 0:
		return nil, nil
	case 1:
		return links[0], nil
	}

	return closestByIdentity(links, title, artist), nil
}

// closestByIdentity ranks candidate links by Jaro-Winkler similarity of the
// normalized "artist title" string and returns the closest one. Ties keep the
// earliest candidate.
func closestByIdentity(links []*models.SmartLink, title, artist string) *models.SmartLink {
	jw := metrics.NewJaroWinkler()
	wanted := models.NormalizeIdentity(artist + " " + title)
	best := links[0]
	bestScore := -1.0
	for _, link := range links {
		stored := models.NormalizeIdentity(link.Artist + " " + link.Title)
		score := strutil.Similarity(wanted, stored, jw)
		if score > bestScore {
			bestScore = score
			best = link
		}
	}
	return best
}

// FindBySlug finds a link by its slug
func (r *mongoLinkRepository) FindBySlug(ctx context.Context, slug string) (*models.SmartLink, error) {
	var link models.SmartLink
	err := r.collection.FindOne(ctx, bson.M{"slug": slug}).Decode(&link)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find link by slug: %w", err)
	}

	return &link, nil
}

// FindByPlatformID finds a link by platform-specific track ID
func (r *mongoLinkRepository) FindByPlatformID(ctx context.Context, platform, externalID string) (*models.SmartLink, error) {
	filter := bson.M{
		"platform_links": bson.M{
			"$elemMatch": bson.M{
				"platform":    platform,
				"external_id": externalID,
			},
		},
	}

	var link models.SmartLink
	err := r.collection.FindOne(ctx, filter).Decode(&link)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find link by platform ID: %w", err)
	}

	return &link, nil
}

// Save inserts a new link or replaces an existing one. Slug collisions on
// insert are retried once with a timestamp-suffixed slug; before retrying,
// the identity key is re-read in case a concurrent resolution of the same
// track won the race, in which case the persisted winner is returned.
func (r *mongoLinkRepository) Save(ctx context.Context, link *models.SmartLink) (*models.SmartLink, error) {
	link.SchemaVersion = models.CurrentSchemaVersion
	link.UpdatedAt = time.Now()

	if !link.ID.IsZero() {
		_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": link.ID}, link)
		if err != nil {
			return nil, fmt.Errorf("failed to update link: %w", err)
		}
		return link, nil
	}

	link.CreatedAt = time.Now()
	if link.Slug == "" {
		link.Slug = models.Slugify(link.Title)
	}

	result, err := r.collection.InsertOne(ctx, link)
	if err == nil {
		link.ID = result.InsertedID.(primitive.ObjectID)
		return link, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("failed to insert link: %w", err)
	}

	// Re-read on conflict: a concurrent resolution of the same track may
	// have inserted first; its record is the authoritative one.
	if existing, findErr := r.findByIdentity(ctx, link); findErr == nil && existing != nil {
		slog.Info("Concurrent insert lost race, returning persisted record",
			"slug", existing.Slug, "id", existing.ID.Hex())
		return existing, nil
	}

	// Different track, same slug: disambiguate deterministically and retry
	// once.
	link.Slug = fmt.Sprintf("%s-%d", models.Slugify(link.Title), time.Now().UnixMilli())
	result, err = r.collection.InsertOne(ctx, link)
	if err != nil {
		return nil, &ConflictError{Slug: link.Slug, Err: err}
	}
	link.ID = result.InsertedID.(primitive.ObjectID)
	return link, nil
}

// findByIdentity looks up a link by its stable identity key: ISRC when
// present, else normalized (title, artist).
func (r *mongoLinkRepository) findByIdentity(ctx context.Context, link *models.SmartLink) (*models.SmartLink, error) {
	if link.ISRC != "" {
		if existing, err := r.FindByISRC(ctx, link.ISRC); err != nil || existing != nil {
			return existing, err
		}
	}
	return r.FindByTitleArtist(ctx, link.Title, link.Artist)
}

// IncrementClicks bumps the click counter for a slug
func (r *mongoLinkRepository) IncrementClicks(ctx context.Context, slug string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"slug": slug},
		bson.M{"$inc": bson.M{"total_clicks": 1}})
	if err != nil {
		return fmt.Errorf("failed to increment clicks: %w", err)
	}
	return nil
}

// Count returns the number of stored links
func (r *mongoLinkRepository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

// anchoredFold builds a case-insensitive whole-string match for an exact
// value.
func anchoredFold(value string) primitive.Regex {
	return primitive.Regex{
		Pattern: "^" + regexp.QuoteMeta(value) + "$",
		Options: "i",
	}
}
