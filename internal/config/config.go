package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application
type Config struct {
	// Application settings
	Port    string `envconfig:"PORT" default:"8080"`
	GinMode string `envconfig:"GIN_MODE" default:"debug"`
	BaseURL string `envconfig:"BASE_URL" default:"http://localhost:8080"`

	// Stores
	MongodbURL string `envconfig:"MONGODB_URL" required:"true"`
	MongodbDB  string `envconfig:"MONGODB_DB" default:"tracklink"`
	ValkeyURL  string `envconfig:"VALKEY_URL"` // optional; in-memory cache when empty

	// Recognition provider
	RecognitionBaseURL string        `envconfig:"RECOGNITION_BASE_URL"`
	RecognitionToken   string        `envconfig:"RECOGNITION_TOKEN"`
	RecognitionTimeout time.Duration `envconfig:"RECOGNITION_TIMEOUT" default:"12s"`

	// Platform credentials
	SpotifyClientID     string `envconfig:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string `envconfig:"SPOTIFY_CLIENT_SECRET"`
	AppleMusicKeyID     string `envconfig:"APPLE_MUSIC_KEY_ID"`
	AppleMusicTeamID    string `envconfig:"APPLE_MUSIC_TEAM_ID"`
	AppleMusicKeyFile   string `envconfig:"APPLE_MUSIC_KEY_FILE"`
	YouTubeAPIKey       string `envconfig:"YOUTUBE_API_KEY"`
	SoundCloudClientID  string `envconfig:"SOUNDCLOUD_CLIENT_ID"`

	// Resolution tuning
	ProviderTimeout   time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"5s"`
	SearchLimit       int           `envconfig:"SEARCH_LIMIT" default:"5"`
	FreeTextThreshold float64       `envconfig:"FREE_TEXT_THRESHOLD" default:"0.8"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	// Short URLs and redirect destinations are built by concatenating paths
	// onto BaseURL; a trailing slash would make them diverge.
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that envconfig tags cannot express.
func (c *Config) Validate() error {
	if c.RecognitionBaseURL != "" && c.RecognitionToken == "" {
		return fmt.Errorf("RECOGNITION_TOKEN is required when RECOGNITION_BASE_URL is set")
	}
	if (c.SpotifyClientID == "") != (c.SpotifyClientSecret == "") {
		return fmt.Errorf("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET must be set together")
	}
	if c.SearchLimit < 1 {
		return fmt.Errorf("SEARCH_LIMIT must be at least 1")
	}
	if c.FreeTextThreshold < 0 || c.FreeTextThreshold > 1 {
		return fmt.Errorf("FREE_TEXT_THRESHOLD must be in [0,1]")
	}
	return nil
}

// HasSpotify reports whether Spotify credentials are configured.
func (c *Config) HasSpotify() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}

// HasAppleMusic reports whether Apple Music developer credentials are
// configured. The iTunes Search fallback needs no credentials.
func (c *Config) HasAppleMusic() bool {
	return c.AppleMusicKeyID != "" && c.AppleMusicTeamID != "" && c.AppleMusicKeyFile != ""
}

// HasRecognition reports whether the recognition provider is configured.
func (c *Config) HasRecognition() bool {
	return c.RecognitionBaseURL != "" && c.RecognitionToken != ""
}
