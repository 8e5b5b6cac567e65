package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/behzodk/shortlink/internal/model"
	"github.com/behzodk/shortlink/internal/service"
)

// Handler holds HTTP handlers and dependencies.
// It follows the dependency injection pattern, receiving
// interfaces rather than concrete implementations for testability.
type Handler struct {
	linkService service.LinkServiceInterface // link management business logic
	resolver    service.ResolverInterface    // slug resolution state machine
	db          DBInterface                  // Database connection for health checks
	cache       CacheInterface               // Cache connection for health checks
	logger      *slog.Logger                 // Structured logger for validation/error logging
	visitLimit  int                          // page size for the visits endpoint

	resolutions metric.Int64Counter // resolution attempts by outcome
}

// DBInterface defines the database operations needed by the handler.
// This interface allows for easy mocking in unit tests without
// requiring a real database connection.
type DBInterface interface {
	Ping(ctx context.Context) error // Check database connectivity
	Close()                         // Close database connection
}

// CacheInterface defines the cache operations needed by the handler.
// This interface allows for easy mocking in unit tests without
// requiring a real cache connection.
type CacheInterface interface {
	Ping(ctx context.Context) error
}

// NewHandler creates a new handler instance with the provided dependencies.
// It accepts interfaces to enable dependency injection and facilitate testing.
func NewHandler(linkService service.LinkServiceInterface, resolver service.ResolverInterface, db DBInterface, cache CacheInterface, logger *slog.Logger, visitLimit int) *Handler {
	meter := otel.Meter("github.com/behzodk/shortlink/internal/api")
	resolutions, err := meter.Int64Counter("shortlink.resolutions",
		metric.WithDescription("Short-link resolution attempts by outcome"))
	if err != nil {
		logger.Warn("failed to create resolution counter", slog.String("error", err.Error()))
	}

	return &Handler{
		linkService: linkService,
		resolver:    resolver,
		db:          db,
		cache:       cache,
		logger:      logger,
		visitLimit:  visitLimit,
		resolutions: resolutions,
	}
}

// RegisterRoutes registers all route definitions on the given Gin engine.
// The caller is responsible for creating the engine and adding middleware
// before calling this method, so middleware runs in the correct order.
// Routes are organized into:
//   - Health check endpoint for monitoring
//   - API v1 endpoints for link management (grouped under /api/v1)
//   - Public resolution endpoint and the pages it bounces to
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.SetHTMLTemplate(PageTemplates())

	// Health check endpoint
	r.GET("/health", h.healthCheck)

	// API v1 routes - grouped for versioning
	v1 := r.Group("/api/v1")
	{
		v1.POST("/links", h.createLink)             // Create short link
		v1.GET("/links", h.listLinks)               // List links
		v1.GET("/links/:slug", h.getLink)           // Get link metadata
		v1.DELETE("/links/:slug", h.deleteLink)     // Delete link
		v1.GET("/links/:slug/visits", h.listVisits) // Recent visits
		v1.GET("/links/:slug/stats", h.linkStats)   // Visit aggregates
	}

	// Public resolution surface
	r.GET("/s/:slug", h.resolve)
	r.GET("/shorten-url/expired", h.expiredPage)
}

// SetupRouter builds a gin engine with the default recovery middleware
// and all routes registered. Used by tests; the server package layers
// logging and tracing middleware on top before registering routes.
func (h *Handler) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	h.RegisterRoutes(r)
	return r
}

// healthCheck handles GET /health
// Returns the health status of the service and all dependencies.
// Response codes:
//   - 200 OK: All dependencies are healthy
//   - 503 Service Unavailable: One or more dependencies are down
func (h *Handler) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()

	cacheErr := h.cache.Ping(ctx)
	dbErr := h.db.Ping(ctx)

	status := "ok"
	code := http.StatusOK
	deps := gin.H{"cache": "up", "database": "up"}

	if cacheErr != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		deps["cache"] = "down"
	}
	if dbErr != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		deps["database"] = "down"
	}

	c.JSON(code, gin.H{"status": status, "dependencies": deps})
}

// createLink handles POST /api/v1/links
// Creates a new short link from the provided destination URL.
// Request body: CreateLinkRequest (JSON)
// Response codes:
//   - 201 Created: Short link successfully created
//   - 400 Bad Request: Invalid body, URL, slug, visibility or passcode
//   - 409 Conflict: Slug already exists
//   - 500 Internal Server Error: Unexpected error
func (h *Handler) createLink(c *gin.Context) {
	ctx := c.Request.Context()
	var req model.CreateLinkRequest

	// Bind and validate JSON request body
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid request body",
			slog.String("error", err.Error()),
			slog.String("path", c.Request.URL.Path))
		h.errorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.linkService.CreateLink(ctx, &req)
	if err != nil {
		// Map service errors to appropriate HTTP status codes
		switch {
		case errors.Is(err, service.ErrInvalidURL):
			h.errorResponse(c, http.StatusBadRequest, "Invalid destination URL")
		case errors.Is(err, service.ErrInvalidSlug):
			h.errorResponse(c, http.StatusBadRequest, "Invalid slug")
		case errors.Is(err, service.ErrInvalidVisibility):
			h.errorResponse(c, http.StatusBadRequest, "Visibility must be public or private")
		case errors.Is(err, service.ErrPasscodeRequired):
			h.errorResponse(c, http.StatusBadRequest, "Private links require a passcode")
		case errors.Is(err, service.ErrInvalidOwner):
			h.errorResponse(c, http.StatusBadRequest, "Invalid owner id")
		case errors.Is(err, service.ErrSlugExists):
			h.errorResponse(c, http.StatusConflict, "Slug already exists")
		default:
			h.logger.ErrorContext(ctx, "unexpected error creating short link",
				slog.String("error", err.Error()))
			h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// listLinks handles GET /api/v1/links
// Returns all short links, newest first.
func (h *Handler) listLinks(c *gin.Context) {
	ctx := c.Request.Context()

	links, err := h.linkService.ListLinks(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "unexpected error listing links",
			slog.String("error", err.Error()))
		h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"links": links})
}

// getLink handles GET /api/v1/links/:slug
// Retrieves metadata for a short link without logging a visit.
// Response codes:
//   - 200 OK: Metadata retrieved successfully
//   - 404 Not Found: Slug does not exist
//   - 500 Internal Server Error: Unexpected error
func (h *Handler) getLink(c *gin.Context) {
	ctx := c.Request.Context()
	slug := c.Param("slug")

	resp, err := h.linkService.GetLink(ctx, slug)
	if err != nil {
		h.linkError(c, slug, err, "unexpected error fetching link")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// deleteLink handles DELETE /api/v1/links/:slug
// Permanently deletes a short link; its visits cascade away with it.
// Response codes:
//   - 204 No Content: Link successfully deleted
//   - 404 Not Found: Slug does not exist
//   - 500 Internal Server Error: Unexpected error
func (h *Handler) deleteLink(c *gin.Context) {
	ctx := c.Request.Context()
	slug := c.Param("slug")

	if err := h.linkService.DeleteLink(ctx, slug); err != nil {
		h.linkError(c, slug, err, "unexpected error deleting link")
		return
	}

	c.Status(http.StatusNoContent)
}

// listVisits handles GET /api/v1/links/:slug/visits
// Returns the most recent visits for a link, newest first. The optional
// limit query parameter is capped at the configured page size.
func (h *Handler) listVisits(c *gin.Context) {
	ctx := c.Request.Context()
	slug := c.Param("slug")

	limit := h.visitLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n < limit {
			limit = n
		}
	}

	visits, err := h.linkService.LinkVisits(ctx, slug, limit)
	if err != nil {
		h.linkError(c, slug, err, "unexpected error listing visits")
		return
	}

	c.JSON(http.StatusOK, gin.H{"visits": visits})
}

// linkStats handles GET /api/v1/links/:slug/stats
// Returns aggregated visit analytics for a link.
func (h *Handler) linkStats(c *gin.Context) {
	ctx := c.Request.Context()
	slug := c.Param("slug")

	stats, err := h.linkService.LinkStats(ctx, slug)
	if err != nil {
		h.linkError(c, slug, err, "unexpected error computing stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// linkError maps common link-management errors onto HTTP responses.
func (h *Handler) linkError(c *gin.Context, slug string, err error, logMsg string) {
	if errors.Is(err, service.ErrLinkNotFound) {
		h.errorResponse(c, http.StatusNotFound, "Link not found")
		return
	}
	h.logger.ErrorContext(c.Request.Context(), logMsg,
		slog.String("error", err.Error()),
		slog.String("slug", slug))
	h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
}

// errorResponse sends a standardized JSON error response.
// It uses the HTTP status code to determine the error type
// and includes a custom message for additional context.
func (h *Handler) errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, model.ErrorResponse{
		Error:   http.StatusText(status), // e.g., "Bad Request", "Not Found"
		Message: message,                 // Custom error message
	})
}
