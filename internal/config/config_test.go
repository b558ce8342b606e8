package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MONGODB_URL", "mongodb://localhost:27017")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, "tracklink", cfg.MongodbDB)
	assert.Equal(t, "12s", cfg.RecognitionTimeout.String())
	assert.Equal(t, "5s", cfg.ProviderTimeout.String())
	assert.Equal(t, 5, cfg.SearchLimit)
	assert.Equal(t, 0.8, cfg.FreeTextThreshold)
	assert.False(t, cfg.HasSpotify())
	assert.False(t, cfg.HasRecognition())
}

func TestLoadNormalizesBaseURL(t *testing.T) {
	t.Setenv("MONGODB_URL", "mongodb://localhost:27017")
	t.Setenv("BASE_URL", "https://tl.example/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://tl.example", cfg.BaseURL)
}

func TestLoadRequiresMongoURL(t *testing.T) {
	t.Setenv("MONGODB_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{SearchLimit: 5, FreeTextThreshold: 0.8}

	t.Run("valid", func(t *testing.T) {
		cfg := valid
		assert.NoError(t, cfg.Validate())
	})

	t.Run("recognition URL without token", func(t *testing.T) {
		cfg := valid
		cfg.RecognitionBaseURL = "https://recognition.example"
		assert.Error(t, cfg.Validate())
	})

	t.Run("spotify credentials must pair", func(t *testing.T) {
		cfg := valid
		cfg.SpotifyClientID = "id"
		assert.Error(t, cfg.Validate())

		cfg.SpotifyClientSecret = "secret"
		assert.NoError(t, cfg.Validate())
		assert.True(t, cfg.HasSpotify())
	})

	t.Run("search limit floor", func(t *testing.T) {
		cfg := valid
		cfg.SearchLimit = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("threshold range", func(t *testing.T) {
		cfg := valid
		cfg.FreeTextThreshold = 1.5
		assert.Error(t, cfg.Validate())
	})
}

func TestHasAppleMusic(t *testing.T) {
	cfg := Config{}
	assert.False(t, cfg.HasAppleMusic())

	cfg.AppleMusicKeyID = "key"
	cfg.AppleMusicTeamID = "team"
	assert.False(t, cfg.HasAppleMusic(), "key file is required too")

	cfg.AppleMusicKeyFile = "/secrets/apple.p8"
	assert.True(t, cfg.HasAppleMusic())
}
