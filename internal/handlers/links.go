package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tracklink/internal/models"
	"tracklink/internal/repositories"
	"tracklink/internal/services"
)

// ResolveLinkRequest is the request to resolve a track reference into a
// smart link.
type ResolveLinkRequest struct {
	Input  string `json:"input" binding:"required"`
	Artist string `json:"artist,omitempty"`
	Title  string `json:"title,omitempty"`
}

// ResolveLinkResponse is the resolution outcome returned to callers.
type ResolveLinkResponse struct {
	Outcome string       `json:"outcome"`
	Link    *LinkPayload `json:"link,omitempty"`
	Message string       `json:"message,omitempty"`
}

// LinkPayload is the public shape of a smart link.
type LinkPayload struct {
	ID                string                  `json:"id"`
	Slug              string                  `json:"slug"`
	ShortURL          string                  `json:"short_url"`
	Title             string                  `json:"title"`
	Artist            string                  `json:"artist"`
	Album             string                  `json:"album,omitempty"`
	ISRC              string                  `json:"isrc,omitempty"`
	MatchConfidence   float64                 `json:"match_confidence"`
	NeedsManualReview bool                    `json:"needs_manual_review"`
	TotalClicks       int64                   `json:"total_clicks"`
	Platforms         map[string]PlatformLink `json:"platforms"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

// PlatformLink is one platform destination in a link payload.
type PlatformLink struct {
	URL        string  `json:"url"`
	Confidence float64 `json:"confidence"`
}

// LinkHandler serves the resolution API and the public redirect.
type LinkHandler struct {
	resolver *services.ResolutionService
	repo     repositories.LinkRepository
	baseURL  string
}

// NewLinkHandler creates a new link handler
func NewLinkHandler(resolver *services.ResolutionService, repo repositories.LinkRepository, baseURL string) *LinkHandler {
	return &LinkHandler{
		resolver: resolver,
		repo:     repo,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// RegisterRoutes wires the handler into the router
func (h *LinkHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	api.POST("/links", h.ResolveLink)
	api.GET("/links/:slug", h.GetLink)

	router.GET("/s/:slug", h.Redirect)
	router.GET("/l/:slug", h.Landing)
}

// ResolveLink handles POST /api/v1/links
func (h *LinkHandler) ResolveLink(c *gin.Context) {
	var req ResolveLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "input is required"})
		return
	}

	result, err := h.resolver.ResolveTrack(c.Request.Context(), req.Input, services.QueryHints{
		Artist: req.Artist,
		Title:  req.Title,
	})
	if err != nil {
		if errors.Is(err, services.ErrEmptyInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "input must not be empty"})
			return
		}
		slog.Error("Resolution failed", "input", req.Input, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve track"})
		return
	}

	switch result.Outcome {
	case services.OutcomeLowConfidence:
		c.JSON(http.StatusUnprocessableEntity, ResolveLinkResponse{
			Outcome: string(result.Outcome),
			Message: "could not confidently identify this track; please provide a direct streaming link",
		})
	case services.OutcomeCached:
		c.JSON(http.StatusOK, ResolveLinkResponse{
			Outcome: string(result.Outcome),
			Link:    h.toPayload(result.Link),
		})
	default:
		c.JSON(http.StatusCreated, ResolveLinkResponse{
			Outcome: string(result.Outcome),
			Link:    h.toPayload(result.Link),
		})
	}
}

// GetLink handles GET /api/v1/links/:slug
func (h *LinkHandler) GetLink(c *gin.Context) {
	link, err := h.repo.FindBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		slog.Error("Link lookup failed", "slug", c.Param("slug"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load link"})
		return
	}
	if link == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
		return
	}

	c.JSON(http.StatusOK, h.toPayload(link))
}

// Redirect handles GET /s/:slug for unauthenticated visitors: 302 to the
// highest-priority destination, 302 to the landing page when the record has
// no destination, 404 when the slug is unknown.
func (h *LinkHandler) Redirect(c *gin.Context) {
	slug := c.Param("slug")

	link, err := h.repo.FindBySlug(c.Request.Context(), slug)
	if err != nil {
		slog.Error("Redirect lookup failed", "slug", slug, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load link"})
		return
	}
	if link == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
		return
	}

	// Click counting is best-effort and must not delay the visitor.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.repo.IncrementClicks(ctx, slug); err != nil {
			slog.Warn("Failed to count click", "slug", slug, "error", err)
		}
	}()

	destination := services.RedirectURL(link, h.baseURL)
	if destination == "" || destination == h.shortURL(slug) {
		c.Redirect(http.StatusFound, "/l/"+slug)
		return
	}

	c.Redirect(http.StatusFound, destination)
}

// Landing handles GET /l/:slug, the landing-page data document used when no
// direct destination exists.
func (h *LinkHandler) Landing(c *gin.Context) {
	link, err := h.repo.FindBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		slog.Error("Landing lookup failed", "slug", c.Param("slug"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load link"})
		return
	}
	if link == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
		return
	}

	c.JSON(http.StatusOK, h.toPayload(link))
}

func (h *LinkHandler) shortURL(slug string) string {
	return h.baseURL + "/s/" + slug
}

func (h *LinkHandler) toPayload(link *models.SmartLink) *LinkPayload {
	if link == nil {
		return nil
	}

	platforms := make(map[string]PlatformLink, len(link.PlatformLinks))
	for _, pl := range link.PlatformLinks {
		platforms[pl.Platform] = PlatformLink{
			URL:        pl.URL,
			Confidence: pl.Confidence,
		}
	}

	return &LinkPayload{
		ID:                link.ID.Hex(),
		Slug:              link.Slug,
		ShortURL:          h.shortURL(link.Slug),
		Title:             link.Title,
		Artist:            link.Artist,
		Album:             link.Album,
		ISRC:              link.ISRC,
		MatchConfidence:   link.MatchConfidence,
		NeedsManualReview: link.NeedsManualReview,
		TotalClicks:       link.TotalClicks,
		Platforms:         platforms,
		CreatedAt:         link.CreatedAt,
		UpdatedAt:         link.UpdatedAt,
	}
}
