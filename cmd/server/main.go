package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"tracklink/internal/cache"
	"tracklink/internal/config"
	"tracklink/internal/handlers"
	"tracklink/internal/models"
	"tracklink/internal/repositories"
	"tracklink/internal/services"
)

func main() {
	// Load .env file for local development
	_ = godotenv.Load()

	// Initialize structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize database
	db, err := models.NewDatabase(context.Background(), cfg.MongodbURL, cfg.MongodbDB)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close(context.Background())

	if err := db.CreateIndexes(context.Background()); err != nil {
		slog.Error("Failed to create indexes", "error", err)
		os.Exit(1)
	}

	// Initialize cache
	var linkCache cache.Cache
	if cfg.ValkeyURL != "" {
		linkCache, err = cache.NewValkeyCache(cfg.ValkeyURL)
		if err != nil {
			slog.Error("Failed to initialize cache", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("VALKEY_URL not set, using in-memory cache")
		linkCache = cache.NewMemoryCache()
	}
	defer linkCache.Close()

	// Initialize repository
	linkRepo := repositories.NewCachedLinkRepository(
		repositories.NewMongoLinkRepository(db), linkCache)

	// Initialize recognition gateway
	var recognition services.RecognitionGateway
	if cfg.HasRecognition() {
		recognition = services.NewRecognitionGateway(
			cfg.RecognitionBaseURL, cfg.RecognitionToken, cfg.RecognitionTimeout)
	} else {
		slog.Warn("Recognition provider not configured, relying on platform search only")
	}

	// Initialize resolution service and platform clients
	resolver := services.NewResolutionService(
		linkRepo, recognition, cfg.SearchLimit, cfg.FreeTextThreshold, cfg.ProviderTimeout)

	if cfg.HasSpotify() {
		resolver.RegisterPlatform(services.NewSpotifyService(
			cfg.SpotifyClientID, cfg.SpotifyClientSecret, cfg.ProviderTimeout))
	}
	resolver.RegisterPlatform(services.NewAppleMusicService(
		cfg.AppleMusicKeyID, cfg.AppleMusicTeamID, cfg.AppleMusicKeyFile,
		linkCache, cfg.ProviderTimeout))
	if cfg.YouTubeAPIKey != "" {
		resolver.RegisterPlatform(services.NewYouTubeService(
			cfg.YouTubeAPIKey, cfg.ProviderTimeout))
	}
	if cfg.SoundCloudClientID != "" {
		resolver.RegisterPlatform(services.NewSoundCloudService(
			cfg.SoundCloudClientID, cfg.ProviderTimeout))
	}

	// Set up router
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), handlers.RequestID(), handlers.RequestLogger())

	handlers.NewLinkHandler(resolver, linkRepo, cfg.BaseURL).RegisterRoutes(router)
	handlers.NewHealthHandler(db, linkCache, resolver).RegisterRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		slog.Info("Server starting", "port", cfg.Port, "base_url", cfg.BaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Forced shutdown", "error", err)
	}

	slog.Info("Server stopped")
}
