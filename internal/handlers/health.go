package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tracklink/internal/cache"
	"tracklink/internal/models"
	"tracklink/internal/services"
)

// HealthHandler reports the health of the store, the cache, and the
// registered platform clients.
type HealthHandler struct {
	db       *models.Database
	cache    cache.Cache
	resolver *services.ResolutionService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *models.Database, c cache.Cache, resolver *services.ResolutionService) *HealthHandler {
	return &HealthHandler{db: db, cache: c, resolver: resolver}
}

// RegisterRoutes wires the handler into the router
func (h *HealthHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()

	components := make(map[string]string)
	healthy := true

	if h.db != nil {
		if err := h.db.Health(ctx); err != nil {
			components["mongodb"] = err.Error()
			healthy = false
		} else {
			components["mongodb"] = "ok"
		}
	}

	if h.cache != nil {
		if err := h.cache.Health(ctx); err != nil {
			components["cache"] = err.Error()
			healthy = false
		} else {
			components["cache"] = "ok"
		}
	}

	// Platform failures degrade resolution quality but do not take the
	// service down.
	for platform, err := range h.resolver.Health(ctx) {
		if err != nil {
			components["platform:"+platform] = err.Error()
		} else {
			components["platform:"+platform] = "ok"
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"healthy":    healthy,
		"components": components,
	})
}
