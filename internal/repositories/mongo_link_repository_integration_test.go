package repositories

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracklink/internal/models"
)

// TestMongoLinkRepositoryIntegration exercises the insert paths that depend on
// the unique slug index against a real MongoDB instance.
func TestMongoLinkRepositoryIntegration(t *testing.T) {
	mongoURL := os.Getenv("TEST_MONGODB_URL")
	if mongoURL == "" {
		t.Skip("Skipping MongoDB integration tests - TEST_MONGODB_URL not set")
	}

	ctx := context.Background()
	db, err := models.NewDatabase(ctx, mongoURL, fmt.Sprintf("tracklink_test_%d", time.Now().UnixNano()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.DB.Drop(context.Background())
		_ = db.Close(context.Background())
	})
	require.NoError(t, db.CreateIndexes(ctx))

	repo := NewMongoLinkRepository(db)

	t.Run("colliding slug for a different track gets a timestamp suffix", func(t *testing.T) {
		first, err := repo.Save(ctx, &models.SmartLink{Title: "Midnight Drive", Artist: "Jane Doe"})
		require.NoError(t, err)
		assert.Equal(t, "midnight-drive", first.Slug)

		second, err := repo.Save(ctx, &models.SmartLink{Title: "Midnight Drive", Artist: "Other Band"})
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
		assert.Regexp(t, `^midnight-drive-\d+$`, second.Slug)
	})

	t.Run("lost race on the same ISRC returns the persisted winner", func(t *testing.T) {
		winner, err := repo.Save(ctx, &models.SmartLink{Title: "Night Swim", Artist: "Jane Doe", ISRC: "USAB12300001"})
		require.NoError(t, err)

		loser, err := repo.Save(ctx, &models.SmartLink{Title: "Night Swim", Artist: "Jane Doe", ISRC: "USAB12300001"})
		require.NoError(t, err)
		assert.Equal(t, winner.ID, loser.ID)
		assert.Equal(t, winner.Slug, loser.Slug)
	})

	t.Run("lost race on the same title and artist returns the persisted winner", func(t *testing.T) {
		winner, err := repo.Save(ctx, &models.SmartLink{Title: "Harbor Lights", Artist: "Jane Doe"})
		require.NoError(t, err)

		loser, err := repo.Save(ctx, &models.SmartLink{Title: "harbor lights", Artist: "JANE DOE"})
		require.NoError(t, err)
		assert.Equal(t, winner.ID, loser.ID)
	})
}
