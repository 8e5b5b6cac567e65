package api

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/behzodk/shortlink/internal/service"
	"github.com/behzodk/shortlink/internal/visitor"
)

// resolve handles GET /s/:slug
// Runs the resolution state machine and maps each terminal state onto
// the visitor-facing surface. Visit-recording failures are logged here
// and nowhere else; they never change the response.
// Response codes:
//   - 302 Found: redirect to the destination URL
//   - 302 Found: redirect to /shorten-url/expired?slug=... when expired
//   - 200 OK: passcode challenge page (pending or failed attempt)
//   - 404 Not Found: unknown slug, or the store was unreachable
func (h *Handler) resolve(c *gin.Context) {
	ctx := c.Request.Context()
	slug := c.Param("slug")

	// Only the first passcode value is considered when the parameter
	// is repeated.
	passcode := c.Query("passcode")

	meta := visitor.Derive(c.Request.Header)
	res := h.resolver.Resolve(ctx, slug, passcode, meta)

	if res.LookupErr != nil {
		h.logger.ErrorContext(ctx, "link lookup failed, treating as not found",
			slog.String("slug", slug),
			slog.String("error", res.LookupErr.Error()))
	}
	if res.VisitErr != nil {
		h.logger.WarnContext(ctx, "visit recording failed",
			slog.String("slug", slug),
			slog.String("error", res.VisitErr.Error()))
	}
	if h.resolutions != nil {
		h.resolutions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", string(res.Outcome))))
	}

	switch res.Outcome {
	case service.OutcomeResolved:
		c.Redirect(http.StatusFound, res.DestinationURL)
	case service.OutcomeExpired:
		c.Redirect(http.StatusFound, "/shorten-url/expired?slug="+url.QueryEscape(slug))
	case service.OutcomeChallengePending:
		c.HTML(http.StatusOK, "challenge.html", gin.H{"Slug": slug, "Invalid": false})
	case service.OutcomeChallengeFailed:
		c.HTML(http.StatusOK, "challenge.html", gin.H{"Slug": slug, "Invalid": true})
	default:
		c.HTML(http.StatusNotFound, "notfound.html", gin.H{"Slug": slug})
	}
}

// expiredPage handles GET /shorten-url/expired
// Renders the informational page expired links bounce to, naming the
// slug when the hint parameter is present.
func (h *Handler) expiredPage(c *gin.Context) {
	c.HTML(http.StatusOK, "expired.html", gin.H{"Slug": c.Query("slug")})
}
